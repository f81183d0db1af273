package decode

import (
	"testing"
	"time"
)

type payload struct {
	To     string         `json:"to"`
	Text   string         `json:"text"`
	Count  int            `json:"count"`
	Refs   []string       `json:"refs"`
	Meta   map[string]any `json:"meta"`
	Expire time.Duration  `json:"expire"`
}

func decodeRaw(raw []byte) (*payload, error) {
	m, err := ToMap(raw)
	if err != nil {
		return nil, err
	}
	var p payload
	if err := Into(m, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func TestIntoWeakTypes(t *testing.T) {
	raw := []byte(`{"to":9,"text":"hi","count":"3","refs":[1,"b"],"meta":"{\"k\":\"v\"}","expire":"2s","unknown":true}`)

	p, err := decodeRaw(raw)
	if err != nil {
		t.Fatal(err)
	}
	if p.To != "9" || p.Text != "hi" || p.Count != 3 {
		t.Fatalf("unexpected %+v", p)
	}
	if len(p.Refs) != 2 || p.Refs[0] != "1" || p.Refs[1] != "b" {
		t.Fatalf("refs = %v", p.Refs)
	}
	if p.Meta["k"] != "v" {
		t.Fatalf("meta = %v", p.Meta)
	}
	if p.Expire != 2*time.Second {
		t.Fatalf("expire = %v", p.Expire)
	}
}

func TestToMapRejectsNonObject(t *testing.T) {
	for _, raw := range []string{`not json`, `[1,2]`, `null`} {
		if _, err := ToMap([]byte(raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestReadHelpers(t *testing.T) {
	m, err := ToMap([]byte(`{"userId":10001,"ids":["a",2]}`))
	if err != nil {
		t.Fatal(err)
	}
	if s, err := ReadString(m, "userId"); err != nil || s != "10001" {
		t.Fatalf("ReadString = %q, %v", s, err)
	}
	if _, err := ReadString(m, "missing"); err == nil {
		t.Fatal("expected missing field error")
	}
	if _, err := ReadStringSlice(m, "userId"); err == nil {
		t.Fatal("expected not array error")
	}
	ids, err := ReadStringSlice(m, "ids")
	if err != nil || len(ids) != 2 || ids[1] != "2" {
		t.Fatalf("ReadStringSlice = %v, %v", ids, err)
	}
}
