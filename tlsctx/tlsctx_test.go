package tlsctx_test

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/DNS-OARC/gonet/tlsctx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestReferenceCounting(t *testing.T) {
	t.Parallel()

	ctx := tlsctx.New()
	if err := ctx.Init(tlsctx.MethodTlsServer); err != nil {
		t.Fatalf("Init error = %v", err)
	}

	h1, err := ctx.NewHandle()
	if err != nil {
		t.Fatalf("NewHandle error = %v", err)
	}
	h2, err := ctx.NewHandle()
	if err != nil {
		t.Fatalf("NewHandle error = %v", err)
	}

	if err := ctx.Shutdown(); err == nil {
		t.Fatal("Shutdown should fail while handles are outstanding")
	}

	if err := h1.Release(); err != nil {
		t.Fatalf("Release error = %v", err)
	}
	if err := ctx.Shutdown(); err == nil {
		t.Fatal("Shutdown should still fail with one handle outstanding")
	}

	if err := h2.Release(); err != nil {
		t.Fatalf("Release error = %v", err)
	}
	if err := ctx.Shutdown(); err != nil {
		t.Fatalf("Shutdown should succeed once all handles are released: %v", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	t.Parallel()

	ctx := tlsctx.New()
	if err := ctx.Init(tlsctx.MethodTlsClient); err != nil {
		t.Fatalf("Init error = %v", err)
	}

	h, err := ctx.NewHandle()
	if err != nil {
		t.Fatalf("NewHandle error = %v", err)
	}
	if err := h.Release(); err != nil {
		t.Fatalf("first Release error = %v", err)
	}
	if err := h.Release(); err != nil {
		t.Fatalf("second Release should be a no-op, got error = %v", err)
	}
	if ctx.RefCount() != 0 {
		t.Fatalf("RefCount() = %d, want 0", ctx.RefCount())
	}
}

func TestReleaseWithoutNewHandleFails(t *testing.T) {
	t.Parallel()

	ctx := tlsctx.New()
	if err := ctx.Init(tlsctx.MethodTls); err != nil {
		t.Fatalf("Init error = %v", err)
	}

	h, err := ctx.NewHandle()
	if err != nil {
		t.Fatalf("NewHandle error = %v", err)
	}
	if err := h.Release(); err != nil {
		t.Fatalf("Release error = %v", err)
	}
	if err := ctx.ReleaseHandle(h); err == nil {
		t.Fatal("releasing an already-released handle's ref count twice should fail")
	}
}

func TestSetCipherListRejectsUnknown(t *testing.T) {
	t.Parallel()

	ctx := tlsctx.New()
	if err := ctx.Init(tlsctx.MethodTlsClient); err != nil {
		t.Fatalf("Init error = %v", err)
	}
	if err := ctx.SetCipherList([]string{"NOT_A_REAL_CIPHER"}); err == nil {
		t.Fatal("SetCipherList with unknown cipher should fail")
	}
}

func TestOperationsRequireConfigured(t *testing.T) {
	t.Parallel()

	ctx := tlsctx.New()
	if _, err := ctx.NewHandle(); err == nil {
		t.Fatal("NewHandle before Init should fail")
	}
}
