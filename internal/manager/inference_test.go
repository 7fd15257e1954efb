package manager

import (
	"errors"
	"testing"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Fatalf("round trip %s: %v %v", k, got, err)
		}
	}
	if _, err := ParseKind("vision"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if Kind(9).String() != "kind(9)" {
		t.Fatalf("unexpected invalid kind string")
	}
}

func TestResolveDevice(t *testing.T) {
	found := func(string) (string, error) { return "/usr/bin/nvidia-smi", nil }
	missing := func(string) (string, error) { return "", errors.New("not found") }
	cases := []struct {
		pref string
		look func(string) (string, error)
		want Device
	}{
		{"cpu", found, DeviceCPU},
		{"gpu", missing, DeviceCUDA},
		{"cuda", missing, DeviceCUDA},
		{"auto", found, DeviceCUDA},
		{"auto", missing, DeviceCPU},
		{"", missing, DeviceCPU},
	}
	for _, c := range cases {
		if got := ResolveDevice(c.pref, c.look); got != c.want {
			t.Fatalf("ResolveDevice(%q) = %s want %s", c.pref, got, c.want)
		}
	}
	if PrecisionFor(DeviceCUDA) != "float16" || PrecisionFor(DeviceCPU) != "int8" {
		t.Fatalf("unexpected precision mapping")
	}
}

func TestAcquireAsTyped(t *testing.T) {
	rig := newRig(t, nil)
	rig.loaders[KindLLM].wrap = func(h *fakeHandle) Handle { return fakeSummarizer{h} }
	ctx := testCtx(t)
	sum, err := AcquireSummarizer(ctx, rig.m, "")
	if err != nil {
		t.Fatalf("acquire summarizer: %v", err)
	}
	out, err := Infer(ctx, sum, "notes")
	if err != nil || out != "summary of notes" {
		t.Fatalf("infer: %q %v", out, err)
	}
	// plain fake handles do not transcribe
	if _, err := AcquireTranscriber(ctx, rig.m, ""); !IsModelLoad(err) {
		t.Fatalf("expected type mismatch load error, got %v", err)
	}
}

func TestInferWrapsErrors(t *testing.T) {
	rig := newRig(t, nil)
	rig.loaders[KindLLM].wrap = func(h *fakeHandle) Handle {
		h.inferErr = errBoom
		return fakeSummarizer{h}
	}
	ctx := testCtx(t)
	sum, err := AcquireSummarizer(ctx, rig.m, "llama_8b")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	_, err = Infer(ctx, sum, "x")
	var ie *InferenceError
	if !errors.As(err, &ie) || ie.Kind != KindLLM || ie.Variant != "llama_8b" || !errors.Is(err, errBoom) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestErrorHelpers(t *testing.T) {
	if !IsTooBusy(tooBusyError{reason: "x"}) || IsTooBusy(errBoom) {
		t.Fatalf("IsTooBusy mismatch")
	}
	if !IsDependencyUnavailable(ErrDependencyUnavailable("x")) || IsDependencyUnavailable(errBoom) {
		t.Fatalf("IsDependencyUnavailable mismatch")
	}
	wrapped := &ModelLoadError{Kind: KindASR, Variant: "small", Err: ErrDependencyUnavailable("no binary")}
	if !IsDependencyUnavailable(wrapped) {
		t.Fatalf("dependency unavailable should unwrap through ModelLoadError")
	}
	if wrapped.Error() != `load asr model "small": no binary` {
		t.Fatalf("unexpected message: %s", wrapped.Error())
	}
}
