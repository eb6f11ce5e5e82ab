package deck

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestElementRoundTripUnknownType(t *testing.T) {
	in := []byte(`{"id":"e1","type":"hologram","bounds":{"x":0.30000000000000004,"y":12.5,"w":100,"h":50},"emitter":{"rays":7},"name":"future"}`)

	var el Element
	if err := json.Unmarshal(in, &el); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if el.Type != "hologram" || el.ID != "e1" {
		t.Fatalf("parsed discriminator = %q/%q", el.ID, el.Type)
	}

	out, err := json.Marshal(&el)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got, want map[string]json.RawMessage
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if err := json.Unmarshal(in, &want); err != nil {
		t.Fatalf("reparse input: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("field count changed: got %d want %d", len(got), len(want))
	}
	for k, v := range want {
		if !bytes.Equal(got[k], v) {
			t.Errorf("field %q changed: %s != %s", k, got[k], v)
		}
	}
}

func TestElementPreservesFloatPrecision(t *testing.T) {
	in := []byte(`{"id":"t1","type":"text","text":"hi","bounds":{"x":0.1,"y":0.30000000000000004}}`)
	var el Element
	if err := json.Unmarshal(in, &el); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	raw, ok := el.Attr("bounds")
	if !ok {
		t.Fatal("bounds attr missing")
	}
	if !bytes.Contains(raw, []byte("0.30000000000000004")) {
		t.Errorf("float precision lost: %s", raw)
	}
}

func TestElementSrcParsing(t *testing.T) {
	var img Element
	if err := json.Unmarshal([]byte(`{"id":"i1","type":"image","src":"data:image/png;base64,AAAA","alt":"pic"}`), &img); err != nil {
		t.Fatalf("unmarshal image: %v", err)
	}
	if img.Src != "data:image/png;base64,AAAA" {
		t.Fatalf("image src = %q", img.Src)
	}

	// src on a text element is not an asset slot and stays verbatim.
	var txt Element
	if err := json.Unmarshal([]byte(`{"id":"t1","type":"text","src":"not-an-asset"}`), &txt); err != nil {
		t.Fatalf("unmarshal text: %v", err)
	}
	if txt.Src != "" {
		t.Fatalf("text element parsed a src: %q", txt.Src)
	}
	if raw, ok := txt.Attr("src"); !ok || string(raw) != `"not-an-asset"` {
		t.Fatalf("text src attr = %s, ok=%v", raw, ok)
	}

	// Rewriting Src must show up in the output.
	img.Src = "asset://sha256:0000000000000000000000000000000000000000000000000000000000000000"
	out, err := json.Marshal(&img)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Contains(out, []byte(`"src":"asset://sha256:`)) {
		t.Fatalf("rewritten src missing from output: %s", out)
	}
	if !bytes.Contains(out, []byte(`"alt":"pic"`)) {
		t.Fatalf("alt lost on rewrite: %s", out)
	}
}

func TestElementNullSrcLeftAlone(t *testing.T) {
	in := []byte(`{"id":"i1","type":"image","src":null}`)
	var el Element
	if err := json.Unmarshal(in, &el); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if el.Src != "" {
		t.Fatalf("null src parsed as %q", el.Src)
	}
	out, err := json.Marshal(&el)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Contains(out, []byte(`"src":null`)) {
		t.Fatalf("null src not preserved: %s", out)
	}
}

func TestSlideNullThumbnailLeftAlone(t *testing.T) {
	in := []byte(`{"id":"s1","thumbnail":null,"background":{"type":"image","value":null}}`)
	var s Slide
	if err := json.Unmarshal(in, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Thumbnail != "" || s.Background.Value != "" {
		t.Fatalf("null slots parsed: thumb=%q value=%q", s.Thumbnail, s.Background.Value)
	}
	out, err := json.Marshal(&s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, frag := range []string{`"thumbnail":null`, `"value":null`} {
		if !bytes.Contains(out, []byte(frag)) {
			t.Errorf("output missing %s: %s", frag, out)
		}
	}
}

func TestGroupNesting(t *testing.T) {
	in := []byte(`{"id":"g1","type":"group","children":[
		{"id":"t1","type":"text","text":"a"},
		{"id":"g2","type":"group","children":[{"id":"i1","type":"image","src":"x"}]}
	]}`)

	var g Element
	if err := json.Unmarshal(in, &g); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(g.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(g.Children))
	}
	inner := g.Children[1]
	if inner.Type != TypeGroup || len(inner.Children) != 1 {
		t.Fatalf("nested group not parsed: %+v", inner)
	}
	if inner.Children[0].Src != "x" {
		t.Fatalf("nested image src = %q", inner.Children[0].Src)
	}

	out, err := json.Marshal(&g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var g2 Element
	if err := json.Unmarshal(out, &g2); err != nil {
		t.Fatalf("round-trip unmarshal: %v", err)
	}
	if len(g2.Children) != 2 || g2.Children[1].Children[0].ID != "i1" {
		t.Fatalf("round trip lost structure: %s", out)
	}
}

func TestSlideRoundTrip(t *testing.T) {
	in := []byte(`{"id":"s1","title":"Intro","layout":"title","thumbnail":"data:image/png;base64,AA==",
		"notes":{"presenter":"say hi","aiSuggestions":["slow down"]},
		"transitions":{"in":"fade"},
		"background":{"type":"color","value":"#fff","opacity":0.5},
		"elements":[{"id":"t1","type":"text","text":"hello"}]}`)

	var s Slide
	if err := json.Unmarshal(in, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.ID != "s1" || s.Title != "Intro" || s.Thumbnail == "" {
		t.Fatalf("parsed slide = %+v", s)
	}
	if s.Background == nil || s.Background.Type != "color" || s.Background.Value != "#fff" {
		t.Fatalf("background = %+v", s.Background)
	}

	out, err := json.Marshal(&s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, frag := range []string{`"presenter":"say hi"`, `"aiSuggestions":["slow down"]`, `"in":"fade"`, `"opacity":0.5`} {
		if !bytes.Contains(out, []byte(frag)) {
			t.Errorf("output missing %s: %s", frag, out)
		}
	}
}
