package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Owner", KeyOwner, "alice", Owner("alice")},
		{"Project", KeyProject, "demo", Project("demo")},
		{"BuildID", KeyBuildID, "b-1", BuildID("b-1")},
		{"Stage", KeyStage, "fetch", Stage("fetch")},
		{"Status", KeyStatus, "success", Status("success")},
		{"Worker", KeyWorker, "worker-0", Worker("worker-0")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Key", KeyKey, "alice/demo/index.html", Key("alice/demo/index.html")},
		{"Host", KeyHost, "alice.example.com", Host("alice.example.com")},
		{"Generator", KeyGenerator, "sphinx", Generator("sphinx")},
		{"URL", KeyURL, "http://example", URL("http://example")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

func TestErrorHelper(t *testing.T) {
	a := Error(errors.New("boom"))
	if a.Key != KeyError || a.Value.String() != "boom" {
		t.Fatalf("unexpected error attr: %v", a)
	}
	if Error(nil).Value.String() != "" {
		t.Fatal("nil error should map to empty string")
	}
}
