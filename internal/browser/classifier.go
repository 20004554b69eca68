package browser

import (
	"context"
	"strings"
)

type PageState int

const (
	StateNormal PageState = iota
	StateChallenge
	StateCaptcha
	StateSecondFactor
	StateError
)

func (s PageState) String() string {
	switch s {
	case StateChallenge:
		return "challenge"
	case StateCaptcha:
		return "captcha"
	case StateSecondFactor:
		return "second_factor"
	case StateError:
		return "error"
	default:
		return "normal"
	}
}

// Classification is the result of inspecting the current page. Message
// carries the inline error text for StateError.
type Classification struct {
	State   PageState
	Message string
}

// Classifier decides what the page currently shows. The concrete selector
// and text matching lives here so a markup change on the target site never
// touches the login or publish state machines.
type Classifier interface {
	Classify(ctx context.Context, s Session) (Classification, error)
}

const challengeText = "There was unusual login activity on your account. To help keep your account safe, please enter your"

const (
	secondFactorInputSel = `input[data-testid="ocfEnterTextTextInput"]`
	alertSel             = `div[role="alert"]`
	captchaFrameSel      = `iframe[src*="arkoselabs"], #arkose_iframe`
)

// Known "wrong credentials" phrasings, English and Russian.
var credentialErrorPhrases = []string{"wrong", "неправильный"}

type domClassifier struct{}

func NewClassifier() Classifier {
	return domClassifier{}
}

// pageProbe is filled by a single DOM read so classification costs one
// round-trip to the browser.
type pageProbe struct {
	Heading      string `json:"heading"`
	Alert        string `json:"alert"`
	HasSecond    bool   `json:"hasSecond"`
	HasCaptcha   bool   `json:"hasCaptcha"`
	ChallengeHit bool   `json:"challengeHit"`
}

const probeJS = `(() => {
	const text = (sel) => {
		const el = document.querySelector(sel);
		return el ? el.textContent : "";
	};
	return {
		heading: text('h1[role="heading"]'),
		alert: text('` + alertSel + `'),
		hasSecond: !!document.querySelector('` + secondFactorInputSel + `'),
		hasCaptcha: !!document.querySelector('` + captchaFrameSel + `'),
		challengeHit: (document.body ? document.body.innerText : "").includes(` + "`" + challengeText + "`" + `),
	};
})()`

func (domClassifier) Classify(ctx context.Context, s Session) (Classification, error) {
	var probe pageProbe
	if err := s.Evaluate(ctx, probeJS, &probe); err != nil {
		return Classification{}, err
	}

	switch {
	case probe.HasCaptcha:
		return Classification{State: StateCaptcha}, nil
	case probe.ChallengeHit:
		return Classification{State: StateChallenge}, nil
	case probe.HasSecond:
		return Classification{State: StateSecondFactor}, nil
	case isCredentialError(probe.Alert):
		return Classification{State: StateError, Message: strings.TrimSpace(probe.Alert)}, nil
	}
	return Classification{State: StateNormal}, nil
}

func isCredentialError(alert string) bool {
	if alert == "" {
		return false
	}
	lower := strings.ToLower(alert)
	for _, phrase := range credentialErrorPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
