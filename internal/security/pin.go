package security

import (
	"errors"
	"unicode"
)

var (
	ErrPINFormat = errors.New("PIN must be exactly 4 digits")
	ErrPINWeak   = errors.New("PIN is too easy to guess")
)

var commonPINs = map[string]struct{}{
	"1234": {}, "1111": {}, "0000": {}, "1212": {}, "7777": {},
	"1004": {}, "2000": {}, "4444": {}, "2222": {}, "6969": {},
	"9999": {}, "3333": {}, "5555": {}, "6666": {}, "1122": {},
	"1313": {}, "8888": {}, "4321": {}, "2001": {}, "1010": {},
	"2580": {}, "0852": {},
}

// ValidatePIN rejects PINs that are malformed or easily guessed: repeated
// digits, straight runs in either direction and a list of common choices.
func ValidatePIN(pin string) error {
	if len(pin) != 4 {
		return ErrPINFormat
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return ErrPINFormat
		}
	}

	if _, ok := commonPINs[pin]; ok {
		return ErrPINWeak
	}

	same, asc, desc := true, true, true
	for i := 1; i < len(pin); i++ {
		d := int(pin[i]) - int(pin[i-1])
		same = same && d == 0
		asc = asc && d == 1
		desc = desc && d == -1
	}
	if same || asc || desc {
		return ErrPINWeak
	}
	return nil
}
