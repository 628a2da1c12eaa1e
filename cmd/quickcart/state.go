package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// stateDir keeps the per-device files of the CLI: the device id that
// keys the anonymous cart and the last issued session token.
type stateDir struct {
	path string
}

type savedSession struct {
	Token string `json:"token"`
}

func openStateDir(path string) (*stateDir, error) {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &stateDir{path: path}, nil
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quickcart"
	}
	return filepath.Join(home, ".quickcart")
}

// deviceID returns the id stored in the state dir, creating one on
// first use.
func (d *stateDir) deviceID() (string, error) {
	file := filepath.Join(d.path, "device")

	data, err := os.ReadFile(file)
	if err == nil {
		if id, err := uuid.Parse(strings.TrimSpace(string(data))); err == nil {
			return id.String(), nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read device id: %w", err)
	}

	id := uuid.NewString()
	if err := os.WriteFile(file, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write device id: %w", err)
	}
	return id, nil
}

func (d *stateDir) token() (string, error) {
	data, err := os.ReadFile(filepath.Join(d.path, "session.json"))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}

	var s savedSession
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("decode session: %w", err)
	}
	return s.Token, nil
}

func (d *stateDir) saveToken(token string) error {
	data, err := json.Marshal(savedSession{Token: token})
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(d.path, "session.json"), data, 0o600); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (d *stateDir) clearToken() error {
	err := os.Remove(filepath.Join(d.path, "session.json"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
