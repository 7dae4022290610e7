package health

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Failure is a failing check.
type Failure struct {
	Check   string
	Message string
}

// Report is the body of a probe response.
type Report struct {
	Failures []Failure
}

// OK reports whether no check failed.
func (r Report) OK() bool {
	return len(r.Failures) == 0
}

// Encode writes r as {"status":"ok"} or
// {"status":"unhealthy","checks":{"name":"message"}}.
func (r Report) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("status")
	if r.OK() {
		e.Str("ok")
		e.ObjEnd()
		return
	}
	e.Str("unhealthy")
	e.FieldStart("checks")
	e.ObjStart()
	for _, f := range r.Failures {
		e.FieldStart(f.Check)
		e.Str(f.Message)
	}
	e.ObjEnd()
	e.ObjEnd()
}

// Decode reads a report written by Encode.
func (r *Report) Decode(d *jx.Decoder) error {
	r.Failures = nil
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "status":
			_, err := d.Str()
			return errors.Wrap(err, "status")
		case "checks":
			return d.ObjBytes(func(d *jx.Decoder, name []byte) error {
				msg, err := d.Str()
				if err != nil {
					return errors.Wrapf(err, "check %q", name)
				}
				r.Failures = append(r.Failures, Failure{Check: string(name), Message: msg})
				return nil
			})
		default:
			return d.Skip()
		}
	})
}

// Write sends r with 200 when healthy and 503 otherwise.
func (r Report) Write(w http.ResponseWriter) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	r.Encode(e)

	status := http.StatusOK
	if !r.OK() {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
