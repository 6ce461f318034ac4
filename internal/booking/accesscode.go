package booking

import "crypto/rand"

// accessCodeAlphabet excludes easily-confused characters (0/O, 1/I/L) so
// the code survives being read over the phone.
const accessCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const accessCodeLength = 8

// NewAccessCode returns the short random secret that lets a guest look a
// reservation up without an account.
func NewAccessCode() string {
	buf := make([]byte, accessCodeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the platform's entropy source is
		// broken; there is no reasonable fallback.
		panic("access code generation: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = accessCodeAlphabet[int(b)%len(accessCodeAlphabet)]
	}
	return string(buf)
}
