package dom

import (
	"strings"
	"testing"
)

const samplePage = `<html><head>
<link rel="stylesheet" href="/s.css">
<link rel="Shortcut Icon" href="/favicon.ico">
<style>body { background: url("/bg.gif"); }</style>
</head><body background="/body.jpg">
<img src="a.png"><img alt="no source">
<a href="/page.html">page</a>
</body></html>`

func TestEach(t *testing.T) {
	t.Parallel()

	doc, err := ParseString(samplePage)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	t.Run("tag with attribute predicate", func(t *testing.T) {
		t.Parallel()

		var got []string
		doc.Each("img", HasAttr("src"), func(e *Element) {
			got = append(got, e.AttrOr("src"))
		})
		if len(got) != 1 || got[0] != "a.png" {
			t.Errorf("expected [a.png], got %v", got)
		}
	})

	t.Run("attribute equality ignores case", func(t *testing.T) {
		t.Parallel()

		count := 0
		doc.Each("link", AttrEquals("rel", "STYLESHEET"), func(*Element) { count++ })
		if count != 1 {
			t.Errorf("expected 1 stylesheet link, got %d", count)
		}
	})

	t.Run("word match", func(t *testing.T) {
		t.Parallel()

		var got []string
		doc.Each("link", AttrHasWord("rel", "icon"), func(e *Element) {
			got = append(got, e.AttrOr("href"))
		})
		if len(got) != 1 || got[0] != "/favicon.ico" {
			t.Errorf("expected favicon, got %v", got)
		}
	})

	t.Run("any tag", func(t *testing.T) {
		t.Parallel()

		var tags []string
		doc.Each("*", HasAttr("background"), func(e *Element) {
			tags = append(tags, e.Tag())
		})
		if len(tags) != 1 || tags[0] != "body" {
			t.Errorf("expected [body], got %v", tags)
		}
	})
}

func TestMutateAndRender(t *testing.T) {
	t.Parallel()

	doc, err := ParseString(samplePage)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	doc.Each("img", HasAttr("src"), func(e *Element) {
		e.SetAttr("src", "local/a.png")
	})
	doc.Each("style", nil, func(e *Element) {
		e.SetText(RewriteCSSURLs(e.Text(), func(string) string { return `x"y.gif` }))
	})

	out, err := doc.Render()
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, `src="local/a.png"`) {
		t.Errorf("expected rewritten src in %s", out)
	}
	if !strings.Contains(out, `url(x"y.gif)`) {
		t.Errorf("expected unescaped style text in %s", out)
	}
}

func TestCSSURLs(t *testing.T) {
	t.Parallel()

	css := `a { background: url( "one.png" ) } b { background: url('two.png') } c { background: url(three.png) } d { background: url("") }`
	got := CSSURLs(css)
	want := []string{"one.png", "two.png", "three.png"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("url %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestRewriteCSSURLs(t *testing.T) {
	t.Parallel()

	got := RewriteCSSURLs(`background: url('/a.png') no-repeat`, strings.ToUpper)
	if got != `background: url(/A.PNG) no-repeat` {
		t.Errorf("unexpected rewrite %q", got)
	}
}

func TestDecodeUTF8(t *testing.T) {
	t.Parallel()

	t.Run("latin-1 from header", func(t *testing.T) {
		t.Parallel()

		body := []byte("<p>caf\xe9</p>")
		got, name := DecodeUTF8(body, "text/html; charset=iso-8859-1")
		if name != "windows-1252" {
			t.Errorf("expected windows-1252, got %s", name)
		}
		if string(got) != "<p>café</p>" {
			t.Errorf("unexpected decode %q", got)
		}
	})

	t.Run("meta charset", func(t *testing.T) {
		t.Parallel()

		body := []byte(`<html><head><meta charset="shift_jis"></head><body>` + "\x83\x65\x83\x58\x83\x67" + `</body></html>`)
		got, name := DecodeUTF8(body, "text/html")
		if name != "shift_jis" {
			t.Errorf("expected shift_jis, got %s", name)
		}
		if !strings.Contains(string(got), "テスト") {
			t.Errorf("unexpected decode %q", got)
		}
	})

	t.Run("utf-8 unchanged", func(t *testing.T) {
		t.Parallel()

		body := []byte("<p>日本語</p>")
		got, name := DecodeUTF8(body, "text/html; charset=utf-8")
		if name != "utf-8" || string(got) != string(body) {
			t.Errorf("expected unchanged utf-8, got %s %q", name, got)
		}
	})
}
