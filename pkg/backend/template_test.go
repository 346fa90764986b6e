package backend

import (
	"reflect"
	"testing"

	"meep/fpgarelay/pkg/config"
)

func TestTemplate_Build(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		tmpl      Template
		payload   string
		wantArgv  []string
		wantStdin string
	}{
		{
			name:      "stdin delivery",
			tmpl:      Template{Program: "ssh", Args: []string{"raju", "./process_data.sh"}},
			payload:   "21",
			wantArgv:  []string{"ssh", "raju", "./process_data.sh"},
			wantStdin: "21\n",
		},
		{
			name:      "placeholder argument",
			tmpl:      Template{Program: "./process_data.sh", Args: []string{"--value", config.PayloadPlaceholder}},
			payload:   "21",
			wantArgv:  []string{"./process_data.sh", "--value", "21"},
			wantStdin: "",
		},
		{
			name:      "shell metacharacters stay one argument",
			tmpl:      Template{Program: "./process_data.sh", Args: []string{config.PayloadPlaceholder}},
			payload:   "1; rm -rf ~",
			wantArgv:  []string{"./process_data.sh", "1; rm -rf ~"},
			wantStdin: "",
		},
		{
			name:      "no args",
			tmpl:      Template{Program: "cat"},
			payload:   "-5",
			wantArgv:  []string{"cat"},
			wantStdin: "-5\n",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			argv, stdin := tc.tmpl.Build(tc.payload)
			if !reflect.DeepEqual(argv, tc.wantArgv) {
				t.Errorf("argv = %q, want %q", argv, tc.wantArgv)
			}
			if stdin != tc.wantStdin {
				t.Errorf("stdin = %q, want %q", stdin, tc.wantStdin)
			}
		})
	}
}

func TestTemplate_BuildDoesNotMutate(t *testing.T) {
	t.Parallel()

	tmpl := Template{Program: "p", Args: []string{config.PayloadPlaceholder}}
	tmpl.Build("21")

	if tmpl.Args[0] != config.PayloadPlaceholder {
		t.Errorf("Build() modified the template: %v", tmpl.Args)
	}
}

func TestOutcomeConstructors(t *testing.T) {
	t.Parallel()

	if o := OK("42"); o.Kind != KindOK || o.Output != "42" {
		t.Errorf("OK() = %+v", o)
	}
	if o := NonZeroExit("bad input", 2); o.Kind != KindNonZeroExit || o.Stderr != "bad input" || o.ExitCode != 2 {
		t.Errorf("NonZeroExit() = %+v", o)
	}
	if o := Timeout(); o.Kind != KindTimeout {
		t.Errorf("Timeout() = %+v", o)
	}
	if o := InvocationError("boom"); o.Kind != KindInvocationError || o.Message != "boom" {
		t.Errorf("InvocationError() = %+v", o)
	}
	if s := Kind(99).String(); s != "kind(99)" {
		t.Errorf("Kind(99).String() = %q", s)
	}
}

func TestCappedBuffer(t *testing.T) {
	t.Parallel()

	b := &cappedBuffer{max: 4}
	for _, chunk := range []string{"ab", "cdef", "gh"} {
		n, err := b.Write([]byte(chunk))
		if err != nil || n != len(chunk) {
			t.Fatalf("Write(%q) = %d, %v", chunk, n, err)
		}
	}
	if b.String() != "abcd" {
		t.Errorf("String() = %q, want %q", b.String(), "abcd")
	}
}

func TestOutputShaping(t *testing.T) {
	t.Parallel()

	lines := map[string]string{
		"42\n":           "42",
		"  42  \n":       "42",
		"42\nextra\n":    "42",
		"42\r\nextra":    "42",
		"\n\n42\nmore\n": "42",
		"":               "",
	}
	for in, want := range lines {
		if got := firstLine(in); got != want {
			t.Errorf("firstLine(%q) = %q, want %q", in, got, want)
		}
	}

	joined := map[string]string{
		"bad input\n":                "bad input",
		"line one\n\n  line two  \n": "line one line two",
		"Permission denied\r\n":      "Permission denied",
		"":                           "",
	}
	for in, want := range joined {
		if got := oneLine(in); got != want {
			t.Errorf("oneLine(%q) = %q, want %q", in, got, want)
		}
	}
}
