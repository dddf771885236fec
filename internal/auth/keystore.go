package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// lightweight per-user credential store (file, 0600) with AES-GCM
// obfuscation. Not a replacement for OS keychains but avoids plain-text
// tokens on disk.

const sessionFileName = "session.json"

// Keystore persists the session credentials across process restarts.
type Keystore struct {
	dir string // override for tests; empty means os.UserConfigDir
}

// NewKeystore returns a store rooted at the user config directory.
func NewKeystore() *Keystore { return &Keystore{} }

// NewKeystoreAt returns a store rooted at dir.
func NewKeystoreAt(dir string) *Keystore { return &Keystore{dir: dir} }

type sessionFile struct {
	Token string `json:"token"` // base64(ciphertext)
	Email string `json:"email"`
}

// Save persists the token and email, replacing any previous session.
func (k *Keystore) Save(token, email string) error {
	path, err := k.filePath()
	if err != nil {
		return err
	}
	ct, err := encrypt([]byte(token))
	if err != nil {
		return err
	}
	sf := sessionFile{
		Token: base64.StdEncoding.EncodeToString(ct),
		Email: email,
	}
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load returns the persisted token and email. A missing file yields empty
// strings and no error.
func (k *Keystore) Load() (token, email string, err error) {
	path, err := k.filePath()
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", nil
		}
		return "", "", err
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return "", "", err
	}
	raw, err := base64.StdEncoding.DecodeString(sf.Token)
	if err != nil {
		return "", "", err
	}
	pt, err := decrypt(raw)
	if err != nil {
		return "", "", err
	}
	return string(pt), sf.Email, nil
}

// Clear removes the persisted session.
func (k *Keystore) Clear() error {
	path, err := k.filePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (k *Keystore) filePath() (string, error) {
	dir := k.dir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, "quill")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil { // restrict directory
		return "", err
	}
	return filepath.Join(dir, sessionFileName), nil
}

func masterKey() []byte {
	user := os.Getenv("USER")
	base := fmt.Sprintf("quill-%s-%s", runtime.GOOS, user)
	hash := sha256.Sum256([]byte(base))
	return hash[:]
}

func encrypt(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(masterKey())
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(masterKey())
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce := ciphertext[:gcm.NonceSize()]
	body := ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}
