// Package query parses the dirpy URL query grammar into an ordered pipeline
// plus the two reserved argument bags (C1, spec §4.1).
package query

import (
	"net/url"
	"strings"

	"github.com/redfin/dirpy/core"
	apperrors "github.com/redfin/dirpy/errors"
)

// reserved names that populate argument bags instead of the positional
// pipeline, plus the bare status probe.
const (
	cmdLoad   = "load"
	cmdSave   = "save"
	cmdStatus = "status"
)

// ParseQuery translates a raw (still percent-encoded) query string into a
// core.Request; commands, option keys and option values are unescaped
// individually after splitting.
//
// Grammar (§4.1):
//
//	query      := pair ('&' pair)*
//	pair       := command ['=' optlist]
//	optlist    := opt (',' opt)*
//	opt        := key [':' value]
//
// command and key are case-sensitive; an option with no ":value" takes the
// sentinel value true. If command is "load" or "save" the parsed option bag
// replaces the corresponding reserved bag (last-writer-wins); otherwise the
// pair is appended to the pipeline in order. A bare command with no "="
// still produces a pipeline entry with an empty option bag.
func ParseQuery(rawQuery string) (*core.Request, error) {
	req := &core.Request{
		LoadOpts: core.Options{},
		SaveOpts: core.Options{},
	}

	if rawQuery == "" {
		return req, nil
	}

	for _, rawPair := range strings.Split(rawQuery, "&") {
		if rawPair == "" {
			continue
		}

		cmd, rawOpts, hasOpts := strings.Cut(rawPair, "=")
		cmd, err := url.QueryUnescape(cmd)
		if err != nil {
			return nil, apperrors.User("malformed command %q: %v", rawPair, err)
		}
		if cmd == "" {
			return nil, apperrors.User("empty command in query %q", rawQuery)
		}

		var opts core.Options
		if hasOpts {
			opts, err = parseOptList(rawOpts)
			if err != nil {
				return nil, err
			}
		} else {
			opts = core.Options{}
		}

		switch cmd {
		case cmdStatus:
			req.Status = true
		case cmdLoad:
			req.LoadOpts = opts
		case cmdSave:
			req.SaveOpts = opts
		default:
			req.Pipeline = append(req.Pipeline, core.Command{Name: cmd, Options: opts})
		}
	}

	return req, nil
}

// parseOptList parses "opt(,opt)*" into an Options bag.
func parseOptList(raw string) (core.Options, error) {
	opts := make(core.Options)
	for _, rawOpt := range strings.Split(raw, ",") {
		if rawOpt == "" {
			continue
		}
		key, value, hasValue := strings.Cut(rawOpt, ":")
		key, err := url.QueryUnescape(key)
		if err != nil {
			return nil, apperrors.User("malformed option %q: %v", rawOpt, err)
		}
		if key == "" {
			return nil, apperrors.User("empty option key in %q", raw)
		}
		if !hasValue {
			opts[key] = core.OptionValue{True: true}
			continue
		}
		value, err = url.QueryUnescape(value)
		if err != nil {
			return nil, apperrors.User("malformed option value %q: %v", rawOpt, err)
		}
		opts[key] = core.OptionValue{Str: value}
	}
	return opts, nil
}

// IsFavicon reports whether path is the always-204 favicon special case.
func IsFavicon(path string) bool { return path == "/favicon.ico" }
