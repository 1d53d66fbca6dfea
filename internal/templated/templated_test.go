package templated

import (
	"strings"
	"testing"
)

func probeContext() Context {
	return Context{
		"time":  "2023-05-01T10:00:00",
		"lat":   51.5074,
		"lon":   -0.1278,
		"value": 285.3,
		"data": Context{
			"time": Context{"data": "2023-05-01T10:00:00"},
		},
	}
}

func render(t *testing.T, text string) string {
	t.Helper()
	out, err := Render(text, probeContext())
	if err != nil {
		t.Fatalf("Render(%q): %v", text, err)
	}
	return out
}

func TestRenderPlainText(t *testing.T) {
	if got := render(t, "no spans here"); got != "no spans here" {
		t.Fatalf("got %q", got)
	}
}

func TestTimeSliceRoundTrip(t *testing.T) {
	got := render(t, "${str(data['time'].data)[0:10]}")
	if got != "2023-05-01" {
		t.Fatalf("got %q, want %q", got, "2023-05-01")
	}
}

func TestFixedDecimalFormatting(t *testing.T) {
	got := render(t, "ST: ${fixed(value, 2)} K")
	if got != "ST: 285.30 K" {
		t.Fatalf("got %q, want %q", got, "ST: 285.30 K")
	}
}

func TestConcatenationAndMultipleSpans(t *testing.T) {
	got := render(t, "${fixed(lat, 4)}, ${fixed(lon, 4)}")
	if got != "51.5074, -0.1278" {
		t.Fatalf("got %q", got)
	}
}

func TestAttributeAndKeyAccess(t *testing.T) {
	if got := render(t, "${data['time'].data}"); got != "2023-05-01T10:00:00" {
		t.Fatalf("got %q", got)
	}
	if got := render(t, "${time}"); got != "2023-05-01T10:00:00" {
		t.Fatalf("got %q", got)
	}
}

func TestOpenEndedSlices(t *testing.T) {
	if got := render(t, "${time[11:]}"); got != "10:00:00" {
		t.Fatalf("got %q", got)
	}
	if got := render(t, "${time[:4]}"); got != "2023" {
		t.Fatalf("got %q", got)
	}
	// clamped, never panics
	if got := render(t, "${time[0:9999]}"); got != "2023-05-01T10:00:00" {
		t.Fatalf("got %q", got)
	}
}

func TestSyntaxErrors(t *testing.T) {
	cases := []string{
		"${",
		"${}",
		"${time",
		"${time..}",
		"${'unterminated}x",
		"${time[1}",
		"${time} ${",
	}
	for _, text := range cases {
		if _, err := Parse(text); err == nil {
			t.Errorf("Parse(%q): expected syntax error", text)
		} else {
			var se *SyntaxError
			if !asSyntax(err, &se) {
				t.Errorf("Parse(%q): err %T is not *SyntaxError", text, err)
			}
		}
	}
}

func asSyntax(err error, out **SyntaxError) bool {
	se, ok := err.(*SyntaxError)
	if ok {
		*out = se
	}
	return ok
}

func TestDisallowedConstructs(t *testing.T) {
	// only str and fixed are allowed; anything else must fail at parse
	// time, not at render time
	cases := []string{
		"${open('/etc/passwd')}",
		"${eval('1')}",
		"${__import__('os')}",
		"${str(value) + str(value)}",
	}
	for _, text := range cases {
		if _, err := Parse(text); err == nil {
			t.Errorf("Parse(%q): expected rejection", text)
		}
	}
}

func TestRenderErrorsOnUnknownName(t *testing.T) {
	if _, err := Render("${nope}", probeContext()); err == nil {
		t.Fatal("expected error for unknown name")
	}
	if _, err := Render("${data['nope']}", probeContext()); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestRenderIsPure(t *testing.T) {
	a := render(t, "${str(data['time'].data)[0:10]} / ${fixed(value, 1)}")
	b := render(t, "${str(data['time'].data)[0:10]} / ${fixed(value, 1)}")
	if a != b {
		t.Fatalf("same template and context gave %q then %q", a, b)
	}
}

func TestParseIsMemoized(t *testing.T) {
	t1, err := Parse("memo: ${fixed(value, 0)}")
	if err != nil {
		t.Fatal(err)
	}
	t2, err := Parse("memo: ${fixed(value, 0)}")
	if err != nil {
		t.Fatal(err)
	}
	if t1 != t2 {
		t.Fatal("expected the same *Template for identical text")
	}
}

func TestStringIndex(t *testing.T) {
	if got := render(t, "${time[0]}"); got != "2" {
		t.Fatalf("got %q", got)
	}
	if got := render(t, "${time[-1]}"); got != "0" {
		t.Fatalf("got %q", got)
	}
}

func TestFixedPrecisionBounds(t *testing.T) {
	if _, err := Render("${fixed(value, 99)}", probeContext()); err == nil {
		t.Fatal("expected error for precision out of bounds")
	}
}

func TestLiteralStringsAndNumbers(t *testing.T) {
	if got := render(t, `${'abc'[1:]}`); got != "bc" {
		t.Fatalf("got %q", got)
	}
	if got := render(t, `${fixed(1.5, 1)}`); got != "1.5" {
		t.Fatalf("got %q", got)
	}
}

func TestStringsBuilderNotLeaky(t *testing.T) {
	// long literal around a span keeps its exact shape
	text := strings.Repeat("x", 100) + "${time[:4]}" + strings.Repeat("y", 100)
	got := render(t, text)
	want := strings.Repeat("x", 100) + "2023" + strings.Repeat("y", 100)
	if got != want {
		t.Fatal("literal text mangled around span")
	}
}
