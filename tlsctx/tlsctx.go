// Package tlsctx implements TlsContext (component C): a single configured
// TLS stack shared by many connections, with reference-counted handle
// issuance so configuration can be frozen while a server is live.
package tlsctx

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/DNS-OARC/gonet/neterr"
)

// Method selects which TLS roles a Context may be used for. A Tls method
// disables SSLv2/SSLv3 explicitly via MinVersion, matching component C's
// "TLS-only" requirement; Go's crypto/tls never speaks SSLv2/SSLv3 in the
// first place, but MinVersion is set unconditionally so the intent is
// explicit in the resulting *tls.Config rather than implicit in the
// standard library's defaults.
type Method int

const (
	MethodTls Method = iota
	MethodTlsClient
	MethodTlsServer
)

// State is the Context's lifecycle state, per component C's
// Unconfigured -> Configured -> ShutDown state machine.
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateShutDown
)

// Context owns one configured *tls.Config plus a count of live
// per-connection Handles it has issued. Shutdown fails with
// CodeSslContextInUse while that count is non-zero. All mutation goes
// through mu, so a running server may hand out/release Handles
// concurrently with configuration changes.
type Context struct {
	mu       sync.Mutex
	state    State
	method   Method
	config   *tls.Config
	refCount int
	certPool *x509.CertPool
	logger   *slog.Logger
}

// Option configures a new Context.
type Option func(*Context)

// WithLogger attaches a logger used for diagnostic messages (context
// configuration, handle issuance and release, at debug level).
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) { c.logger = logger }
}

// New returns an Unconfigured Context.
func New(opts ...Option) *Context {
	c := &Context{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init moves the Context from Unconfigured to Configured for the given
// method.
func (c *Context) Init(method Method) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateUnconfigured {
		return neterr.New(neterr.CodeSslContextUninitialized, "context already configured")
	}

	pool := x509.NewCertPool()
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    pool,
	}
	if method == MethodTlsServer {
		cfg.ClientCAs = pool
	}

	c.method = method
	c.config = cfg
	c.certPool = pool
	c.state = StateConfigured

	c.logger.Debug("tls context configured", slog.Int("method", int(method)))

	return nil
}

// requireConfigured must be called with mu held.
func (c *Context) requireConfigured() error {
	if c.state != StateConfigured {
		return neterr.New(neterr.CodeSslContextUninitialized, "tls context is not configured")
	}
	return nil
}

// Shutdown transitions to ShutDown. It fails with CodeSslContextInUse if
// any Handle issued by new_handle has not yet been released.
func (c *Context) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConfigured(); err != nil {
		return err
	}
	if c.refCount != 0 {
		return neterr.New(neterr.CodeSslContextInUse, "tls context has live handles")
	}
	c.state = StateShutDown
	c.config = nil
	return nil
}

// Handle is a per-connection TLS handle issued by a Context. It borrows
// the Context's *tls.Config; Release returns it, decrementing the issuing
// Context's reference count on the first call only.
type Handle struct {
	ctx      *Context
	config   *tls.Config
	released bool
}

// NewHandle issues a Handle bound to c's current configuration and
// increments c's reference count.
func (c *Context) NewHandle() (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConfigured(); err != nil {
		return nil, err
	}

	c.refCount++
	c.logger.Debug("tls handle issued", slog.Int("ref_count", c.refCount))

	return &Handle{ctx: c, config: c.config}, nil
}

// ReleaseHandle decrements c's reference count. It fails with
// CodeSslReferenceCounterMismatch if the count is already zero.
func (c *Context) ReleaseHandle(h *Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refCount == 0 {
		return neterr.New(neterr.CodeSslReferenceCounterMismatch, "release without matching new_handle")
	}
	c.refCount--
	h.released = true
	c.logger.Debug("tls handle released", slog.Int("ref_count", c.refCount))
	return nil
}

// Release returns h to its issuing Context. Safe to call multiple times;
// only the first call decrements the reference count.
func (h *Handle) Release() error {
	if h.released {
		return nil
	}
	return h.ctx.ReleaseHandle(h)
}

// Config returns the *tls.Config this handle was issued against, for use
// by tcpsock when performing the handshake.
func (h *Handle) Config() *tls.Config { return h.config }

// RefCount reports the current number of live handles. Exposed for tests
// and metrics, not part of the core state machine.
func (c *Context) RefCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refCount
}

// LoadTrustedCAFromFile adds the PEM certificates in path to the trust
// store.
func (c *Context) LoadTrustedCAFromFile(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConfigured(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return neterr.TranslateOSError(err, "load trusted CA "+path)
	}
	if !c.certPool.AppendCertsFromPEM(data) {
		return neterr.New(neterr.CodeInvalidSslCertificate, "no certificates found in "+path)
	}
	return nil
}

// LoadTrustedCAFromPath adds every PEM file directly under dir to the
// trust store.
func (c *Context) LoadTrustedCAFromPath(dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConfigured(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return neterr.TranslateOSError(err, "load trusted CA path "+dir)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		c.certPool.AppendCertsFromPEM(data)
	}

	return nil
}

// LoadCertificate loads a certificate chain and private key. If keyPath is
// empty the key is read from certPath (a combined PEM file). password is
// not used: the key is parsed by tls.LoadX509KeyPair, which accepts only
// unencrypted PKCS#1, PKCS#8 or EC keys, so an encrypted key fails with
// CodeSslPrivateKey whatever password is given.
func (c *Context) LoadCertificate(certPath, keyPath, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConfigured(); err != nil {
		return err
	}

	if keyPath == "" {
		keyPath = certPath
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return neterr.Wrap(neterr.CodeSslPrivateKey, certPath, err)
	}

	c.config.Certificates = append(c.config.Certificates, cert)
	return nil
}

// cipherSuitesByName resolves the names accepted by set_cipher_list to
// Go's tls.CipherSuite IDs. Go's crypto/tls intentionally exposes only a
// curated list of secure suites (see tls.CipherSuites), so set_cipher_list
// restricts the configured set to that list rather than accepting an
// arbitrary OpenSSL cipher-string grammar.
func cipherSuitesByName(names []string) ([]uint16, error) {
	available := make(map[string]uint16)
	for _, s := range tls.CipherSuites() {
		available[s.Name] = s.ID
	}

	ids := make([]uint16, 0, len(names))
	for _, name := range names {
		id, ok := available[name]
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, neterr.New(neterr.CodeInvalidSslCipher, "no acceptable ciphers")
	}
	return ids, nil
}

// SetCipherList restricts the negotiable cipher suites to spec, a list of
// Go tls.CipherSuite names (e.g. "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256").
// Names Go does not offer are ignored; fails with CodeInvalidSslCipher if
// none are acceptable.
func (c *Context) SetCipherList(spec []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConfigured(); err != nil {
		return err
	}

	ids, err := cipherSuitesByName(spec)
	if err != nil {
		return err
	}
	c.config.CipherSuites = ids
	return nil
}

// SetTmpDHParam loads ephemeral DH parameters from file. Modern Go TLS
// (1.2 with ECDHE, or 1.3) never negotiates classic finite-field DHE, so
// this validates that the file exists and contains a PEM "DH PARAMETERS"
// block for configuration-compatibility with the OpenSSL-backed original,
// but the parameters themselves are not consumed by crypto/tls.
func (c *Context) SetTmpDHParam(file string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConfigured(); err != nil {
		return err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return neterr.Wrap(neterr.CodeSslFailedToReadDhParams, file, err)
	}
	if block, _ := pem.Decode(data); block == nil || block.Type != "DH PARAMETERS" {
		return neterr.New(neterr.CodeSslFailedToReadDhParams, file)
	}
	return nil
}

// Method returns the method this context was initialized with.
func (c *Context) Method() Method {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.method
}

// State returns the current lifecycle state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
