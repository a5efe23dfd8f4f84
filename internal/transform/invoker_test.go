package transform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

const testDoc = `<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader>
    <fileDesc>
      <titleStmt><title>Test Title</title><author>Author, A.</author></titleStmt>
      <sourceDesc><biblFull><publicationStmt><date>1850</date></publicationStmt></biblFull></sourceDesc>
    </fileDesc>
    <profileDesc><langUsage><language ident="en">English</language></langUsage></profileDesc>
  </teiHeader>
  <text><body><p>four words of text</p></body></text>
</TEI>`

// fakeEngine returns canned responses without an external process.
type fakeEngine struct {
	text   string
	err    error
	closed bool
}

func (f *fakeEngine) Transform(ctx context.Context, inputPath string) (string, error) {
	return f.text, f.err
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func writeTestDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.xml")
	if err := os.WriteFile(path, []byte(testDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInvoke_Success(t *testing.T) {
	iv := NewInvoker(&fakeEngine{text: "four words of text"})
	res, terr := iv.Invoke(context.Background(), writeTestDoc(t))
	if terr != nil {
		t.Fatalf("Invoke: %v", terr)
	}
	if res.Text != "four words of text" {
		t.Errorf("Text: got %q", res.Text)
	}
	if res.Meta.Title != "Test Title" || res.Meta.Language != "en" {
		t.Errorf("Meta: got %+v", res.Meta)
	}
	if res.Meta.WordCount != 4 {
		t.Errorf("WordCount: got %d, want 4", res.Meta.WordCount)
	}
	if res.Meta.CharCount != len("four words of text") {
		t.Errorf("CharCount: got %d", res.Meta.CharCount)
	}
}

func TestInvoke_EngineFailurePassedThrough(t *testing.T) {
	want := &TransformError{Kind: KindResourceUnavailable, Message: "engine gone"}
	iv := NewInvoker(&fakeEngine{err: want})
	_, terr := iv.Invoke(context.Background(), writeTestDoc(t))
	if terr == nil || terr.Kind != KindResourceUnavailable {
		t.Errorf("got %v, want resource-unavailable", terr)
	}
}

func TestInvoke_UnclassifiedErrorBecomesRuntime(t *testing.T) {
	iv := NewInvoker(&fakeEngine{err: errors.New("plain failure")})
	_, terr := iv.Invoke(context.Background(), writeTestDoc(t))
	if terr == nil || terr.Kind != KindRuntime {
		t.Errorf("got %v, want transform-runtime", terr)
	}
}

func TestInvoke_BadSourceHeaderIsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xml")
	if err := os.WriteFile(path, []byte("<TEI><teiHeader>"), 0o644); err != nil {
		t.Fatal(err)
	}
	iv := NewInvoker(&fakeEngine{text: "output"})
	_, terr := iv.Invoke(context.Background(), path)
	if terr == nil || terr.Kind != KindMalformedInput {
		t.Errorf("got %v, want malformed-input", terr)
	}
}

func TestInvoker_CloseReleasesEngine(t *testing.T) {
	eng := &fakeEngine{}
	iv := NewInvoker(eng)
	if err := iv.Close(); err != nil {
		t.Fatal(err)
	}
	if !eng.closed {
		t.Error("engine not closed")
	}
}

// --- XSLTEngine tests against a scripted external processor ---

// fakeProcessor writes an executable shell script standing in for xsltproc.
func fakeProcessor(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fakexslt")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func stylesheet(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tei.xsl")
	if err := os.WriteFile(path, []byte("<xsl:stylesheet/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewXSLTEngine_MissingCommand(t *testing.T) {
	_, err := NewXSLTEngine("definitely-not-a-real-processor", stylesheet(t))
	var terr *TransformError
	if !errors.As(err, &terr) || terr.Kind != KindResourceUnavailable {
		t.Errorf("got %v, want resource-unavailable TransformError", err)
	}
}

func TestNewXSLTEngine_MissingStylesheet(t *testing.T) {
	cmd := fakeProcessor(t, "exit 0")
	_, err := NewXSLTEngine(cmd, filepath.Join(t.TempDir(), "absent.xsl"))
	var terr *TransformError
	if !errors.As(err, &terr) || terr.Kind != KindResourceUnavailable {
		t.Errorf("got %v, want resource-unavailable TransformError", err)
	}
}

func TestXSLTEngine_TransformCapturesStdout(t *testing.T) {
	cmd := fakeProcessor(t, `echo "plain text output"`)
	eng, err := NewXSLTEngine(cmd, stylesheet(t))
	if err != nil {
		t.Fatal(err)
	}
	text, err := eng.Transform(context.Background(), "input.xml")
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if text != "plain text output\n" {
		t.Errorf("text: got %q", text)
	}
}

func TestXSLTEngine_ClassifiesFailureStderr(t *testing.T) {
	tests := []struct {
		name string
		body string
		want ErrorKind
	}{
		{"parser error", `echo "doc.xml:3: parser error : Premature end of data" >&2; exit 6`, KindMalformedInput},
		{"runtime error", `echo "runtime error: element value-of" >&2; exit 10`, KindRuntime},
		{"resource error", `echo "out of memory" >&2; exit 1`, KindResourceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, err := NewXSLTEngine(fakeProcessor(t, tt.body), stylesheet(t))
			if err != nil {
				t.Fatal(err)
			}
			_, err = eng.Transform(context.Background(), "input.xml")
			var terr *TransformError
			if !errors.As(err, &terr) {
				t.Fatalf("got %v, want TransformError", err)
			}
			if terr.Kind != tt.want {
				t.Errorf("kind: got %s, want %s", terr.Kind, tt.want)
			}
		})
	}
}

func TestXSLTEngine_DeadlineIsTimeout(t *testing.T) {
	eng, err := NewXSLTEngine(fakeProcessor(t, "sleep 5"), stylesheet(t))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = eng.Transform(ctx, "input.xml")
	var terr *TransformError
	if !errors.As(err, &terr) || terr.Kind != KindTimeout {
		t.Errorf("got %v, want timeout", err)
	}
}
