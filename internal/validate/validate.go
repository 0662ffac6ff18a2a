// Package validate checks send requests against a fixed, declarative rule
// table. Every rule runs; violations accumulate in table order so the first
// one can be shown as the primary reason.
package validate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/shineum/mailrelay/internal/email"
)

// LocationBody tags violations found in the request body.
const LocationBody = "body"

// Violation is a single field-level validation failure.
type Violation struct {
	Msg      string `json:"msg"`
	Param    string `json:"param"`
	Location string `json:"location"`
}

// rule is one row of the table: the tag is evaluated against the value at
// path. Rules with each set apply the tag to every element of a list.
type rule struct {
	path    string
	tag     string
	message string
	value   func(*email.SendRequest) any
	each    func(*email.SendRequest) []string
}

var rules = []rule{
	{path: "smtp.host", tag: "required", message: "SMTP host is required",
		value: func(r *email.SendRequest) any { return r.SMTP.Host }},
	{path: "smtp.port", tag: "min=1,max=65535", message: "Valid SMTP port is required",
		value: func(r *email.SendRequest) any { return int(r.SMTP.Port) }},
	{path: "smtp.username", tag: "required", message: "SMTP username is required",
		value: func(r *email.SendRequest) any { return r.SMTP.Username }},
	{path: "smtp.password", tag: "required", message: "SMTP password is required",
		value: func(r *email.SendRequest) any { return r.SMTP.Password }},
	{path: "smtp.crypto", tag: "oneof=ssl tls none", message: "Crypto must be ssl, tls, or none",
		value: func(r *email.SendRequest) any { return string(r.SMTP.Crypto) }},
	{path: "email.fromEmail", tag: "omitempty,mailbox", message: "If provided, sender email must be valid",
		value: func(r *email.SendRequest) any { return r.Email.FromEmail }},
	{path: "email.to", tag: "min=1", message: "At least one recipient is required",
		value: func(r *email.SendRequest) any { return r.Email.To }},
	{path: "email.to", tag: "mailbox", message: "All recipients must be valid emails",
		each: func(r *email.SendRequest) []string { return r.Email.To }},
	{path: "email.subject", tag: "required", message: "Subject is required",
		value: func(r *email.SendRequest) any { return r.Email.Subject }},
	{path: "email.cc", tag: "mailbox", message: "All CC recipients must be valid emails",
		each: func(r *email.SendRequest) []string { return r.Email.Cc }},
	{path: "email.bcc", tag: "mailbox", message: "All BCC recipients must be valid emails",
		each: func(r *email.SendRequest) []string { return r.Email.Bcc }},
	{path: "email.replyTo", tag: "mailbox", message: "All reply-to addresses must be valid emails",
		each: func(r *email.SendRequest) []string { return r.Email.ReplyTo }},
}

var (
	engineOnce sync.Once
	engine     *validator.Validate
)

// getEngine returns the shared validator. The "mailbox" tag is the
// library's "email" check minus quoted local parts holding whitespace.
func getEngine() *validator.Validate {
	engineOnce.Do(func() {
		engine = validator.New()
		// Registration only fails for an empty tag or nil func.
		_ = engine.RegisterValidation("nospace", func(fl validator.FieldLevel) bool {
			return !strings.ContainsAny(fl.Field().String(), " \t\r\n")
		})
		engine.RegisterAlias("mailbox", "email,nospace")
	})
	return engine
}

// Request validates req and returns its violations in rule order.
// A nil result means the request is valid.
func Request(req *email.SendRequest) []Violation {
	v := getEngine()

	var violations []Violation
	for _, r := range rules {
		if r.each != nil {
			for i, item := range r.each(req) {
				if err := v.Var(item, r.tag); err != nil {
					violations = append(violations, Violation{
						Msg:      r.message,
						Param:    fmt.Sprintf("%s[%d]", r.path, i),
						Location: LocationBody,
					})
				}
			}
			continue
		}

		if err := v.Var(r.value(req), r.tag); err != nil {
			violations = append(violations, Violation{
				Msg:      r.message,
				Param:    r.path,
				Location: LocationBody,
			})
		}
	}

	return violations
}

// Merge folds decoding violations into the rule violations. A decoding
// violation takes the place of the first rule violation for the same field
// or one of its elements. Other rule violations for the field are dropped.
// Decoding violations for fields without a rule violation are appended.
func Merge(found []Violation, decoded ...Violation) []Violation {
	out := append([]Violation(nil), found...)
	for _, d := range decoded {
		merged := make([]Violation, 0, len(out)+1)
		placed := false
		for _, v := range out {
			if !sameField(v.Param, d.Param) {
				merged = append(merged, v)
				continue
			}
			if !placed {
				merged = append(merged, d)
				placed = true
			}
		}
		if !placed {
			merged = append(merged, d)
		}
		out = merged
	}
	return out
}

func sameField(param, field string) bool {
	return param == field ||
		strings.HasPrefix(param, field+"[") ||
		strings.HasPrefix(param, field+".")
}

// IsMailbox reports whether s is a bare email address: a local part, "@",
// and a domain containing a dot.
func IsMailbox(s string) bool {
	return getEngine().Var(s, "mailbox") == nil
}
