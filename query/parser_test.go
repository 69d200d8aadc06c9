package query

import (
	"testing"

	apperrors "github.com/redfin/dirpy/errors"
)

func TestParseQuery_Empty(t *testing.T) {
	req, err := ParseQuery("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Pipeline) != 0 {
		t.Fatalf("expected empty pipeline, got %v", req.Pipeline)
	}
	if req.Status {
		t.Fatalf("expected Status=false")
	}
}

func TestParseQuery_PipelineOrder(t *testing.T) {
	req, err := ParseQuery("resize=640x480&crop=100x100,gravity:nw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Pipeline) != 2 {
		t.Fatalf("expected 2 pipeline commands, got %d", len(req.Pipeline))
	}
	if req.Pipeline[0].Name != "resize" || req.Pipeline[1].Name != "crop" {
		t.Fatalf("pipeline order not preserved: %+v", req.Pipeline)
	}
	if req.Pipeline[1].Options.Get("gravity") != "nw" {
		t.Fatalf("expected gravity:nw, got %q", req.Pipeline[1].Options.Get("gravity"))
	}
}

func TestParseQuery_BareFlagOption(t *testing.T) {
	req, err := ParseQuery("resize=640x480,unlock")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opts := req.Pipeline[0].Options
	if !opts.Has("unlock") {
		t.Fatalf("expected unlock flag present")
	}
	if opts.Get("unlock") != "" {
		t.Fatalf("expected bare flag to have empty string value, got %q", opts.Get("unlock"))
	}
}

func TestParseQuery_ReservedBagsLastWriterWins(t *testing.T) {
	req, err := ParseQuery("load=proxy:http://a&load=proxy:http://b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.LoadOpts.Get("proxy") != "http://b" {
		t.Fatalf("expected last load bag to win, got %q", req.LoadOpts.Get("proxy"))
	}
}

func TestParseQuery_SaveBag(t *testing.T) {
	req, err := ParseQuery("resize=200x200&save=quality:80,noshow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.SaveOpts.Get("quality") != "80" {
		t.Fatalf("expected save quality:80, got %q", req.SaveOpts.Get("quality"))
	}
	if !req.SaveOpts.Has("noshow") {
		t.Fatalf("expected noshow flag in save bag")
	}
	if len(req.Pipeline) != 1 {
		t.Fatalf("save must not appear in the positional pipeline, got %+v", req.Pipeline)
	}
}

func TestParseQuery_StatusCommand(t *testing.T) {
	req, err := ParseQuery("status")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.Status {
		t.Fatalf("expected Status=true")
	}
	if len(req.Pipeline) != 0 {
		t.Fatalf("status must not enter the pipeline")
	}
}

func TestParseQuery_BareCommandNoOptions(t *testing.T) {
	req, err := ParseQuery("transpose")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Pipeline) != 1 || req.Pipeline[0].Name != "transpose" {
		t.Fatalf("expected bare transpose command, got %+v", req.Pipeline)
	}
	if len(req.Pipeline[0].Options) != 0 {
		t.Fatalf("expected empty option bag for bare command")
	}
}

func TestParseQuery_EmptyCommandIsUserError(t *testing.T) {
	_, err := ParseQuery("=foo:bar")
	if err == nil {
		t.Fatalf("expected error for empty command")
	}
	if !apperrors.IsUser(err) {
		t.Fatalf("expected a user error, got %v", err)
	}
}

func TestParseQuery_EmptyOptionKeyIsUserError(t *testing.T) {
	_, err := ParseQuery("resize=:100")
	if err == nil {
		t.Fatalf("expected error for empty option key")
	}
	if !apperrors.IsUser(err) {
		t.Fatalf("expected a user error, got %v", err)
	}
}

func TestIsFavicon(t *testing.T) {
	if !IsFavicon("/favicon.ico") {
		t.Fatalf("expected /favicon.ico to be recognized")
	}
	if IsFavicon("/favicon.png") {
		t.Fatalf("did not expect /favicon.png to be recognized")
	}
}
