package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"nanoedit/internal/domain"
	"nanoedit/internal/infra"
)

// DefaultMaxFetchBytes caps a single remote image read.
const DefaultMaxFetchBytes = 20 << 20

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	HTTPClient *http.Client
	// Timeout bounds one remote fetch. Default 15s.
	Timeout time.Duration
	// MaxBytes caps the fetched body. Default DefaultMaxFetchBytes.
	MaxBytes int64
	// AllowPrivate disables the check that remote hosts resolve to public
	// addresses.
	AllowPrivate bool
	// LookupIP is replaced in tests. Default net.DefaultResolver.
	LookupIP func(ctx context.Context, host string) ([]net.IP, error)
	Logger   *infra.Logger
}

// Resolver turns an ImageRef into an InlineAsset. It never retries.
type Resolver struct {
	httpClient   *http.Client
	timeout      time.Duration
	maxBytes     int64
	allowPrivate bool
	lookupIP     func(ctx context.Context, host string) ([]net.IP, error)
	logger       *infra.Logger
}

// NewResolver constructs a resolver with sane defaults.
func NewResolver(opts ResolverOptions) *Resolver {
	r := &Resolver{
		timeout:      opts.Timeout,
		maxBytes:     opts.MaxBytes,
		allowPrivate: opts.AllowPrivate,
		lookupIP:     opts.LookupIP,
		logger:       infra.OrDiscard(opts.Logger),
	}
	if r.timeout <= 0 {
		r.timeout = 15 * time.Second
	}
	if r.maxBytes <= 0 {
		r.maxBytes = DefaultMaxFetchBytes
	}
	if r.lookupIP == nil {
		r.lookupIP = func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip", host)
		}
	}
	r.httpClient = opts.HTTPClient
	if r.httpClient == nil {
		dialer := &net.Dialer{Timeout: 10 * time.Second, Control: r.dialControl}
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.Proxy = nil
		tr.DialContext = dialer.DialContext
		r.httpClient = &http.Client{
			Transport: tr,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("too many redirects")
				}
				return r.checkHost(req.Context(), req.URL)
			},
		}
	}
	return r
}

// Resolve dispatches on the reference form. Failures are *domain.Error
// values with a 400 status.
func (r *Resolver) Resolve(ctx context.Context, ref domain.ImageRef) (domain.InlineAsset, error) {
	if ref.IsZero() {
		return domain.InlineAsset{}, domain.Unsupported("image is empty", nil)
	}
	switch ref.Kind {
	case domain.RefDataURI:
		return resolveDataURI(ref.Raw)
	case domain.RefRemoteURL:
		return r.fetch(ctx, ref.Raw)
	default:
		return resolveRawBase64(ref.Raw)
	}
}

func resolveDataURI(s string) (domain.InlineAsset, error) {
	idx := strings.Index(s, "base64,")
	if idx < 0 {
		return domain.InlineAsset{}, domain.Unsupported("data URI must be base64 encoded", nil)
	}
	header := s[len("data:"):idx]
	mime := header
	if i := strings.IndexByte(header, ';'); i >= 0 {
		mime = header[:i]
	}
	mime = domain.NormalizeMIME(mime)
	if !strings.HasPrefix(mime, "image/") {
		return domain.InlineAsset{}, domain.Unsupported(fmt.Sprintf("data URI type %q is not an image", mime), nil)
	}

	data := compact(s[idx+len("base64,"):])
	if _, err := decode(data); err != nil {
		return domain.InlineAsset{}, domain.Unsupported("data URI payload is not valid base64", err)
	}
	return domain.InlineAsset{MimeType: mime, Data: data}, nil
}

func resolveRawBase64(s string) (domain.InlineAsset, error) {
	data := compact(s)
	raw, err := decode(data)
	if err != nil {
		return domain.InlineAsset{}, domain.Unsupported("image is neither a data URI, an http(s) URL nor base64", err)
	}
	mime := domain.DefaultRawMIME
	if sniffed := sniff(raw); sniffed != "" {
		mime = sniffed
	}
	return domain.InlineAsset{MimeType: mime, Data: data}, nil
}

func (r *Resolver) fetch(ctx context.Context, raw string) (domain.InlineAsset, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return domain.InlineAsset{}, domain.Unsupported("image URL is malformed", err)
	}
	if err := r.checkHost(ctx, u); err != nil {
		return domain.InlineAsset{}, domain.FetchFailed(raw, 0, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.InlineAsset{}, domain.FetchFailed(raw, 0, err)
	}
	req.Header.Set("Range", "bytes=0-")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return domain.InlineAsset{}, domain.FetchFailed(raw, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.logger.Debug().Str("url", u.Redacted()).Int("status", resp.StatusCode).Msg("imagegen: image fetch rejected")
		return domain.InlineAsset{}, domain.FetchFailed(raw, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return domain.InlineAsset{}, domain.FetchFailed(raw, 0, err)
	}
	if int64(len(body)) > r.maxBytes {
		return domain.InlineAsset{}, domain.FetchFailed(raw, 0, fmt.Errorf("image exceeds %d bytes", r.maxBytes))
	}
	if len(body) == 0 {
		return domain.InlineAsset{}, domain.FetchFailed(raw, 0, errors.New("empty body"))
	}

	return domain.NewInlineAsset(remoteMIME(resp.Header.Get("Content-Type"), u.Path, body), body), nil
}

// checkHost rejects hosts that resolve to private, loopback or link-local
// addresses unless the resolver allows them.
func (r *Resolver) checkHost(ctx context.Context, u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q not allowed", u.Scheme)
	}
	if r.allowPrivate {
		return nil
	}
	ips, err := r.lookupIP(ctx, u.Hostname())
	if err != nil {
		return fmt.Errorf("resolve %s: %w", u.Hostname(), err)
	}
	for _, ip := range ips {
		if restricted(ip) {
			return fmt.Errorf("host %s resolves to restricted address %s", u.Hostname(), ip)
		}
	}
	return nil
}

// dialControl re-checks the address actually dialed, so a host that
// re-resolves to a private address after checkHost is still refused.
func (r *Resolver) dialControl(network, address string, _ syscall.RawConn) error {
	if r.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}
	ip := net.ParseIP(host)
	if ip == nil || restricted(ip) {
		return fmt.Errorf("dial to restricted address %s refused", host)
	}
	return nil
}

func restricted(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// remoteMIME prefers the response header, then the URL extension, then the
// bytes themselves.
func remoteMIME(header, urlPath string, body []byte) string {
	if mime := domain.NormalizeMIME(header); strings.HasPrefix(mime, "image/") {
		return mime
	}
	switch strings.ToLower(path.Ext(urlPath)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	}
	if sniffed := sniff(body); sniffed != "" {
		return sniffed
	}
	return domain.DefaultRemoteMIME
}

func sniff(b []byte) string {
	mime := domain.NormalizeMIME(mimetype.Detect(b).String())
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return ""
}

func compact(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}

func decode(data string) ([]byte, error) {
	if data == "" {
		return nil, errors.New("empty payload")
	}
	return base64.StdEncoding.DecodeString(data)
}
