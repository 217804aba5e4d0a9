package dbus

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SASL handshake helpers shared by every transport (§4.H "Handshake").
// EXTERNAL is mandatory on unix; ANONYMOUS is the fallback used for
// transports (like plain tcp) that can't carry peer credentials.

func sendSASLLine(w io.Writer, line string) error {
	_, err := io.WriteString(w, line+"\r\n")
	return err
}

func readSASLLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// authExternal performs AUTH EXTERNAL <hex-uid>, optionally negotiates
// unix-fd passing, and sends BEGIN. It returns whether unix-fd passing
// was agreed.
func authExternal(w io.Writer, r *bufio.Reader, uid int, negotiateFD bool) (unixFD bool, err error) {
	uidHex := hex.EncodeToString([]byte(strconv.Itoa(uid)))
	if err := sendSASLLine(w, "AUTH EXTERNAL "+uidHex); err != nil {
		return false, TransportError{err}
	}
	resp, err := readSASLLine(r)
	if err != nil {
		return false, TransportError{err}
	}
	if !strings.HasPrefix(resp, "OK ") {
		return false, TransportError{fmt.Errorf("AUTH EXTERNAL rejected: %q", resp)}
	}
	if negotiateFD {
		if err := sendSASLLine(w, "NEGOTIATE_UNIX_FD"); err != nil {
			return false, TransportError{err}
		}
		resp, err := readSASLLine(r)
		if err != nil {
			return false, TransportError{err}
		}
		unixFD = resp == "AGREE_UNIX_FD"
		// A refusal (e.g. "ERROR") is not fatal: the handshake
		// continues without fd passing (§8 boundary behavior).
	}
	if err := sendSASLLine(w, "BEGIN"); err != nil {
		return false, TransportError{err}
	}
	return unixFD, nil
}

// authAnonymous performs AUTH ANONYMOUS, for transports that can't carry
// unix peer credentials.
func authAnonymous(w io.Writer, r *bufio.Reader) error {
	if err := sendSASLLine(w, "AUTH ANONYMOUS"); err != nil {
		return TransportError{err}
	}
	resp, err := readSASLLine(r)
	if err != nil {
		return TransportError{err}
	}
	if !strings.HasPrefix(resp, "OK ") {
		return TransportError{fmt.Errorf("AUTH ANONYMOUS rejected: %q", resp)}
	}
	return sendSASLLine(w, "BEGIN")
}
