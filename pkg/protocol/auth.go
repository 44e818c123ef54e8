package protocol

import (
	"crypto/md5"
	"encoding/hex"
)

// authToken computes the handshake "a" parameter: md5(passwordMD5Hex + timestamp).
// The engine only ever holds the pre-hashed password, never the plaintext.
func authToken(passwordMD5Hex, timestamp string) string {
	h := md5.New()
	h.Write([]byte(passwordMD5Hex))
	h.Write([]byte(timestamp))
	return hex.EncodeToString(h.Sum(nil))
}
