package store

import (
	"time"

	"github.com/learn-decentralized-systems/toytlv"
	"github.com/pkg/errors"

	diary "github.com/dai175/smart-photo-diary-sub001"
)

// One TLV record per field, fixed set of literals. Repeated literals carry
// repeated values (photos, tags). Unknown literals are skipped on decode so
// old binaries tolerate entries written by newer ones.
//
//	I id        D date       T title      C content
//	P photo id  L location   G tag        H cached tag
//	A cached-tags stamp      R created    U updated

func appendTimeRecord(into []byte, lit byte, t time.Time) []byte {
	if t.IsZero() {
		return into
	}
	return append(into, toytlv.Record(lit, []byte(t.Format(time.RFC3339Nano)))...)
}

func parseTime(body []byte) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, string(body))
}

func encodeEntry(e *diary.DiaryEntry) []byte {
	data := toytlv.Record('I', []byte(e.ID))
	data = appendTimeRecord(data, 'D', e.Date)
	data = append(data, toytlv.Record('T', []byte(e.Title))...)
	data = append(data, toytlv.Record('C', []byte(e.Content))...)
	for _, p := range e.PhotoIDs {
		data = append(data, toytlv.Record('P', []byte(p))...)
	}
	if e.Location != "" {
		data = append(data, toytlv.Record('L', []byte(e.Location))...)
	}
	for _, t := range e.Tags {
		data = append(data, toytlv.Record('G', []byte(t))...)
	}
	for _, t := range e.CachedTags {
		data = append(data, toytlv.Record('H', []byte(t))...)
	}
	data = appendTimeRecord(data, 'A', e.CachedTagsAt)
	data = appendTimeRecord(data, 'R', e.CreatedAt)
	data = appendTimeRecord(data, 'U', e.UpdatedAt)
	return data
}

func decodeEntry(data []byte) (*diary.DiaryEntry, error) {
	e := &diary.DiaryEntry{}
	rest := data
	for len(rest) > 0 {
		lit, body, next, err := toytlv.TakeAnyWary(rest)
		if err != nil {
			return nil, errors.Wrap(err, "bad entry record")
		}
		rest = next
		switch lit {
		case 'I':
			e.ID = string(body)
		case 'D':
			e.Date, err = parseTime(body)
		case 'T':
			e.Title = string(body)
		case 'C':
			e.Content = string(body)
		case 'P':
			e.PhotoIDs = append(e.PhotoIDs, string(body))
		case 'L':
			e.Location = string(body)
		case 'G':
			e.Tags = append(e.Tags, string(body))
		case 'H':
			e.CachedTags = append(e.CachedTags, string(body))
		case 'A':
			e.CachedTagsAt, err = parseTime(body)
		case 'R':
			e.CreatedAt, err = parseTime(body)
		case 'U':
			e.UpdatedAt, err = parseTime(body)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "bad entry field %c", lit)
		}
	}
	if e.ID == "" {
		return nil, errors.New("entry record without an id")
	}
	return e, nil
}
