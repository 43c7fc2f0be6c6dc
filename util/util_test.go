// util/util_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestFilterSliceInPlace(t *testing.T) {
	s := []int{1, 2, 3, 4, 5, 6}
	s = FilterSliceInPlace(s, func(v int) bool { return v%3 != 0 })
	if !slices.Equal(s, []int{1, 2, 4, 5}) {
		t.Errorf("got %v", s)
	}
}

func TestOnceSet(t *testing.T) {
	var o OnceSet[string]
	if !o.Add("XXXX") {
		t.Errorf("first add should report new")
	}
	for i := 0; i < 100; i++ {
		if o.Add("XXXX") {
			t.Fatalf("repeat add reported new")
		}
	}
	if o.Len() != 1 || !o.Contains("XXXX") {
		t.Errorf("unexpected contents")
	}
}

func TestErrorLogger(t *testing.T) {
	var e ErrorLogger
	e.Push("timetable.conf")
	e.Push("line 12")
	e.ErrorString("bad time %q", "25:00:00")
	e.Pop()
	e.Error(errors.New("boom"))
	e.Pop()

	if !e.HaveErrors() || len(e.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %v", e.Errors())
	}
	if e.Errors()[0] != `timetable.conf / line 12: bad time "25:00:00"` {
		t.Errorf("unexpected first error %q", e.Errors()[0])
	}
	if len(e.where) != 0 {
		t.Errorf("context not restored: %v", e.where)
	}
}

func TestStoreRetrieve(t *testing.T) {
	type rec struct {
		RunCount int
		Hits     int
		LastRun  int64
	}
	in := map[string]rec{"PH-BXA": {10, 3, 1700000000}, "N12345": {1, 0, 0}}
	path := filepath.Join(t.TempDir(), "sub", "heuristics.msgpack.zst")
	if err := StoreObject(path, in); err != nil {
		t.Fatalf("store: %v", err)
	}
	var out map[string]rec
	if _, err := RetrieveObject(path, &out); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(out) != 2 || out["PH-BXA"] != in["PH-BXA"] {
		t.Errorf("round trip mismatch: %v", out)
	}
}

func TestReadMaybeCompressed(t *testing.T) {
	text := strings.Repeat("FLIGHT KLM1234 IFR EHAM KJFK 350 0/12:00:00 0/20:00:00 WEEK 744-KLM\n", 20)
	dir := t.TempDir()

	plain := filepath.Join(dir, "klm.conf")
	if err := os.WriteFile(plain, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	packed := filepath.Join(dir, "klm.conf.zst")
	if err := os.WriteFile(packed, enc.EncodeAll([]byte(text), nil), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, fn := range []string{plain, packed} {
		b, err := ReadMaybeCompressed(fn)
		if err != nil {
			t.Fatalf("%s: %v", fn, err)
		}
		if string(b) != text {
			t.Errorf("%s: contents mismatch", fn)
		}
	}
	if _, err := ReadMaybeCompressed(filepath.Join(dir, "missing.zst")); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}

func TestHandoff(t *testing.T) {
	var h Handoff[[]string]
	if _, ok := h.Take(nil); ok {
		t.Fatalf("take before deliver succeeded")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.Deliver(nil, []string{"a", "b"})
	}()
	wg.Wait()

	v, ok := h.Take(nil)
	if !ok || len(v) != 2 {
		t.Fatalf("take after deliver: %v %v", v, ok)
	}
	if _, ok := h.Take(nil); ok {
		t.Errorf("second take succeeded")
	}
}

func TestHandoffAbandon(t *testing.T) {
	var h Handoff[int]
	h.Abandon(nil)
	h.Deliver(nil, 12)
	if _, ok := h.Take(nil); ok {
		t.Errorf("take after abandon succeeded")
	}
	if !h.Done(nil) || !h.Abandoned(nil) {
		t.Errorf("flags not set")
	}
}

func TestGCSClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/o") && r.URL.Query().Get("pageToken") == "":
			json.NewEncoder(w).Encode(GCSListResponse{
				Items:         []GCSObject{{Name: "Terrain/w130n30/w123n37/942050.stg", Size: "12"}},
				NextPageToken: "p2",
			})
		case strings.HasSuffix(r.URL.Path, "/o"):
			json.NewEncoder(w).Encode(GCSListResponse{
				Items: []GCSObject{{Name: "Terrain/w130n30/w123n37/942051.stg", Size: "7"}},
			})
		case r.URL.Query().Get("alt") == "media":
			io.WriteString(w, "OBJECT_BASE 942050.btg\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := MakeGCSClient("terrasync", GCSClientConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	objs, err := c.List(context.Background(), "Terrain/w130n30/w123n37/")
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 2 || objs["Terrain/w130n30/w123n37/942051.stg"] != 7 {
		t.Errorf("unexpected listing %v", objs)
	}

	r, err := c.GetReader(context.Background(), "Terrain/w130n30/w123n37/942050.stg")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	b, _ := io.ReadAll(r)
	if string(b) != "OBJECT_BASE 942050.btg\n" {
		t.Errorf("unexpected body %q", b)
	}

	if _, err := c.GetReader(context.Background(), ""); !errors.Is(err, ErrGCSEmptyName) {
		t.Errorf("expected ErrGCSEmptyName, got %v", err)
	}
}
