// Package encryption provides the interchangeable password encryption
// strategies used by authentication backends, and the Selector that resolves
// a strategy name to an instance.
package encryption

import "strings"

// Strategy converts cleartext passwords into the representation a credential
// store keeps, and checks cleartext against that representation.
//
// Every strategy keeps its own error log. Failures are both returned and
// recorded, so that ErrorReport can be appended to a manager's diagnostics.
type Strategy interface {
	// Name returns the name the strategy was selected by.
	Name() string

	// Encrypt returns the stored representation of cleartext.
	Encrypt(cleartext string) (string, error)

	// Compare reports whether cleartext matches an encrypted value produced
	// by Encrypt. Salted schemes cannot be verified by re-encrypting.
	Compare(encrypted, cleartext string) (bool, error)

	// ErrorReport returns every recorded failure, one per line.
	ErrorReport() string
}

// errorLog is embedded by strategies to satisfy ErrorReport.
type errorLog struct {
	messages []string
}

func (l *errorLog) record(err error) error {
	if err != nil {
		l.messages = append(l.messages, err.Error())
	}
	return err
}

// ErrorReport returns the recorded messages, each terminated by a newline.
func (l *errorLog) ErrorReport() string {
	var b strings.Builder
	for _, msg := range l.messages {
		b.WriteString(msg)
		b.WriteByte('\n')
	}
	return b.String()
}
