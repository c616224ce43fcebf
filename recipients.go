package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"go.uber.org/zap"
)

const (
	FieldFirstName = "First Name"
	FieldLastName  = "Last Name"
	FieldBirthday  = "Birthday"
	FieldEmail     = "Email"
)

const recipientDelimiter = ","

// RecipientRecord is one row of the batch, keyed by header name in header
// order. Fields missing from a short row are absent, not empty.
type RecipientRecord struct {
	names  []string
	values map[string]string
}

func newRecipientRecord() RecipientRecord {
	return RecipientRecord{values: make(map[string]string)}
}

func (r *RecipientRecord) set(name, value string) {
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = value
}

// Get returns the value of a field and whether the row carried it.
func (r RecipientRecord) Get(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Fields returns field names in header order.
func (r RecipientRecord) Fields() []string {
	return append([]string(nil), r.names...)
}

func (r RecipientRecord) FirstName() string {
	v, _ := r.Get(FieldFirstName)
	return v
}

func (r RecipientRecord) LastName() string {
	v, _ := r.Get(FieldLastName)
	return v
}

func (r RecipientRecord) Birthday() string {
	v, _ := r.Get(FieldBirthday)
	return v
}

func (r RecipientRecord) Email() string {
	v, _ := r.Get(FieldEmail)
	return v
}

// Flag reports whether the named field holds value exactly.
func (r RecipientRecord) Flag(name, value string) bool {
	v, ok := r.Get(name)
	return ok && v == value
}

// LoadRecipients parses a header line plus data lines separated by commas.
// The split is not quote-aware: a value containing a comma shifts every
// following field one column to the right.
func LoadRecipients(text string) []RecipientRecord {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	headers := splitTrimmed(lines[0])

	records := make([]RecipientRecord, 0, len(lines)-1)
	for _, line := range lines[1:] {
		values := splitTrimmed(line)
		rec := newRecipientRecord()
		for i, header := range headers {
			if i >= len(values) {
				break
			}
			rec.set(header, values[i])
		}
		records = append(records, rec)
	}
	return records
}

func splitTrimmed(line string) []string {
	parts := strings.Split(line, recipientDelimiter)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func LoadRecipientsFile(path string) ([]RecipientRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipients %s: %w", path, err)
	}
	return LoadRecipients(string(data)), nil
}

// LoadVCards builds records from a vCard stream. BDAY is a birth date, so
// each record carries its next occurrence on or after today (YYYY-MM-DD),
// which is the day the calendar has to offer. Cards without a usable BDAY
// are skipped with a warning.
func LoadVCards(r io.Reader, today time.Time, logger *zap.Logger) ([]RecipientRecord, error) {
	dec := vcard.NewDecoder(r)
	var records []RecipientRecord

	for n := 0; ; n++ {
		card, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode vcard: %w", err)
		}

		first, last := "", ""
		if name := card.Name(); name != nil {
			first, last = name.GivenName, name.FamilyName
		}
		if first == "" {
			first = card.PreferredValue(vcard.FieldFormattedName)
		}

		bday := card.Value(vcard.FieldBirthday)
		if bday == "" {
			logger.Warn("Skipping contact without birthday", zap.Int("card", n), zap.String("name", first))
			continue
		}
		birth, yearKnown, err := ParseVCardBirthday(bday)
		if err != nil {
			logger.Warn("Skipping contact with unreadable birthday", zap.Int("card", n), zap.String("name", first), zap.Error(err))
			continue
		}
		next := NextOccurrence(today, birth)
		logger.Debug("Contact birthday",
			zap.String("name", first),
			zap.String("bday", bday),
			zap.Bool("year_known", yearKnown),
			zap.String("next", next.Format(birthdayLayout)),
		)

		rec := newRecipientRecord()
		rec.set(FieldFirstName, first)
		rec.set(FieldLastName, last)
		rec.set(FieldBirthday, next.Format(birthdayLayout))
		rec.set(FieldEmail, card.PreferredValue(vcard.FieldEmail))
		records = append(records, rec)
	}
	return records, nil
}
