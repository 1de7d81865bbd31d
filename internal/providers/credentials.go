package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const credentialService = "globetrip"

var ErrCredentialNotFound = errors.New("credential not found")

// Source says where a credential was found.
type Source string

const (
	SourceNone    Source = ""
	SourceEnv     Source = "env"
	SourceKeyring Source = "keyring"
	SourceFile    Source = "file"
)

// KeyEnv maps credential names to environment variables that take
// precedence over stored keys.
var KeyEnv = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"google":     "GEMINI_API_KEY",
	"searchapi":  "SEARCHAPI_IO_API_KEY",
}

var (
	credentialFileMu sync.Mutex
	keyringGet       = keyring.Get
	keyringSet       = keyring.Set
	keyringDelete    = keyring.Delete
	userHomeDir      = os.UserHomeDir
	lookupEnv        = os.LookupEnv
)

// StoreCredential saves key in the OS keyring, falling back to a 0600 JSON
// file under ~/.config/globetrip when no keyring is reachable.
func StoreCredential(keyName, key string) error {
	keyName = strings.TrimSpace(keyName)
	key = strings.TrimSpace(key)
	if keyName == "" {
		return errors.New("credential key name is empty")
	}
	if err := ValidateCredential(key); err != nil {
		return err
	}
	if err := keyringSet(credentialService, keyName, key); err == nil {
		return nil
	}
	return updateCredentialFile(func(entries map[string]string) bool {
		entries[keyName] = key
		return true
	})
}

func LoadCredential(keyName string) (string, error) {
	key, _, err := ResolveCredential(keyName)
	return key, err
}

// ResolveCredential looks a key up in the environment, then the keyring,
// then the fallback file.
func ResolveCredential(keyName string) (string, Source, error) {
	keyName = strings.TrimSpace(keyName)
	if keyName == "" {
		return "", SourceNone, errors.New("credential key name is empty")
	}
	if env, ok := KeyEnv[keyName]; ok {
		if v, ok := lookupEnv(env); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), SourceEnv, nil
		}
	}
	if key, err := keyringGet(credentialService, keyName); err == nil && strings.TrimSpace(key) != "" {
		return strings.TrimSpace(key), SourceKeyring, nil
	}

	credentialFileMu.Lock()
	defer credentialFileMu.Unlock()
	entries, err := readCredentialFile()
	if err != nil {
		return "", SourceNone, err
	}
	if key := entries[keyName]; key != "" {
		return key, SourceFile, nil
	}
	return "", SourceNone, ErrCredentialNotFound
}

// DeleteCredential removes a key from both the keyring and the fallback file.
// Removing a key that was never stored is not an error.
func DeleteCredential(keyName string) error {
	keyName = strings.TrimSpace(keyName)
	if keyName == "" {
		return errors.New("credential key name is empty")
	}
	_ = keyringDelete(credentialService, keyName)
	return updateCredentialFile(func(entries map[string]string) bool {
		if _, ok := entries[keyName]; !ok {
			return false
		}
		delete(entries, keyName)
		return true
	})
}

// CredentialSources reports where each of names resolves from. Names with
// no key map to SourceNone.
func CredentialSources(names []string) map[string]Source {
	out := make(map[string]Source, len(names))
	for _, name := range names {
		_, src, _ := ResolveCredential(name)
		out[name] = src
	}
	return out
}

func credentialFilePath() (string, error) {
	home, err := userHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	home = strings.TrimSpace(home)
	if home == "" {
		return "", errors.New("home directory is empty")
	}
	return filepath.Join(home, ".config", "globetrip", "credentials.json"), nil
}

// updateCredentialFile applies fn to the file's entries and writes them back
// when fn reports a change.
func updateCredentialFile(fn func(map[string]string) bool) error {
	credentialFileMu.Lock()
	defer credentialFileMu.Unlock()

	entries, err := readCredentialFile()
	if err != nil {
		return err
	}
	if !fn(entries) {
		return nil
	}
	return writeCredentialFile(entries)
}

func readCredentialFile() (map[string]string, error) {
	path, err := credentialFilePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && strings.TrimSpace(string(raw)) == "") {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}
	var entries map[string]string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode credential file: %w", err)
	}
	clean := make(map[string]string, len(entries))
	for k, v := range entries {
		if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
			clean[k] = v
		}
	}
	return clean, nil
}

// writeCredentialFile replaces the file atomically through a temp file.
func writeCredentialFile(entries map[string]string) error {
	path, err := credentialFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}
	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential file: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write credential temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	return os.Chmod(path, 0o600)
}
