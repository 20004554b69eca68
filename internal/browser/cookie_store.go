package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrNoCookieJar = errors.New("no saved session, log in first")

// CookieStore persists one cookie jar per account login on local disk so
// authenticated sessions survive process restarts.
type CookieStore struct {
	dir string
}

func NewCookieStore(dir string) *CookieStore {
	return &CookieStore{dir: dir}
}

func (s *CookieStore) path(login string) string {
	return filepath.Join(s.dir, login+".json")
}

func (s *CookieStore) Save(login string, cookies []Cookie) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cookies dir: %w", err)
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(login), data, 0o600)
}

func (s *CookieStore) Load(login string) ([]Cookie, error) {
	data, err := os.ReadFile(s.path(login))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCookieJar
		}
		return nil, err
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("corrupt cookie jar for %s: %w", login, err)
	}
	return cookies, nil
}

func (s *CookieStore) Exists(login string) bool {
	_, err := os.Stat(s.path(login))
	return err == nil
}

func (s *CookieStore) Remove(login string) error {
	err := os.Remove(s.path(login))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
