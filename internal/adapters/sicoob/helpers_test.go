package sicoob

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/magnani/sicoob-payment/internal/config"
)

const testAccessToken = "tok-abc123"

// writeTestCertificate gera um certificado autoassinado com a chave no mesmo arquivo PEM
func writeTestCertificate(t *testing.T, dir, name string) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: "loja-teste"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	var buf strings.Builder
	_ = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: der})
	_ = pem.Encode(&buf, &pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(buf.String()), 0o600); err != nil {
		t.Fatalf("write certificate: %v", err)
	}
	return path
}

// recordedRequest guarda o que o servidor falso recebeu
type recordedRequest struct {
	Method      string
	Path        string
	RequestURI  string
	ContentType string
	Auth        string
	Body        []byte
	Form        url.Values
	ClientCerts int
}

// fakeSicoob simula os endpoints de token, PIX e boleto exigindo certificado do cliente
type fakeSicoob struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest

	tokenStatus int
	tokenBody   string
	business    http.HandlerFunc
}

func newFakeSicoob(t *testing.T, business http.HandlerFunc) *fakeSicoob {
	t.Helper()

	f := &fakeSicoob{
		t:           t,
		tokenStatus: http.StatusOK,
		tokenBody:   `{"access_token":"` + testAccessToken + `","token_type":"Bearer","expires_in":300}`,
		business:    business,
	}

	srv := httptest.NewUnstartedServer(http.HandlerFunc(f.serve))
	srv.TLS = &tls.Config{ClientAuth: tls.RequireAnyClientCert}
	srv.StartTLS()
	t.Cleanup(srv.Close)
	f.server = srv
	return f
}

func (f *fakeSicoob) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec := recordedRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		RequestURI:  r.RequestURI,
		ContentType: r.Header.Get("Content-Type"),
		Auth:        r.Header.Get("Authorization"),
		Body:        body,
	}
	if r.TLS != nil {
		rec.ClientCerts = len(r.TLS.PeerCertificates)
	}
	if strings.HasPrefix(rec.ContentType, contentTypeForm) {
		rec.Form, _ = url.ParseQuery(string(body))
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	if r.URL.Path == "/token" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.tokenStatus)
		_, _ = io.WriteString(w, f.tokenBody)
		return
	}

	if f.business == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	f.business(w, r)
}

// Requests retorna uma cópia das requisições recebidas
func (f *fakeSicoob) Requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Last retorna a última requisição de negócio (não token)
func (f *fakeSicoob) Last() recordedRequest {
	f.t.Helper()
	reqs := f.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Path != "/token" {
			return reqs[i]
		}
	}
	f.t.Fatal("no business request recorded")
	return recordedRequest{}
}

func (f *fakeSicoob) rootCAs() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(f.server.Certificate())
	return pool
}

func (f *fakeSicoob) config(certPath string) config.SicoobConfig {
	return config.SicoobConfig{
		ClientID:        "client-123",
		CertificatePath: certPath,
		AuthURL:         f.server.URL + "/token",
		PixURL:          f.server.URL + "/pix/api/v2",
		BoletoURL:       f.server.URL + "/cobranca-bancaria/v3/boletos",
	}
}

// newClient cria um Client apontando para o servidor falso
func (f *fakeSicoob) newClient(t *testing.T) *Client {
	t.Helper()
	certPath := writeTestCertificate(t, t.TempDir(), "loja.pem")
	client, err := NewClient(f.config(certPath), nil, zap.NewNop(), WithRootCAs(f.rootCAs()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
