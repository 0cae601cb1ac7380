package main

import (
	"crypto/tls"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/technologistkj/mina-vysper/internal/storage"
	"github.com/technologistkj/mina-vysper/pkg/bosh"
	"github.com/technologistkj/mina-vysper/pkg/router"
	"github.com/technologistkj/mina-vysper/pkg/s2s"
	"github.com/technologistkj/mina-vysper/pkg/session"
	"github.com/technologistkj/mina-vysper/pkg/xmppping"
	"github.com/technologistkj/mina-vysper/pkg/xmppsasl"
	"github.com/technologistkj/mina-vysper/pkg/xmpptime"
	"github.com/technologistkj/mina-vysper/pkg/xmppversion"
)

// serverName and serverVersion answer XEP-0092 software version queries.
const (
	serverName    = "mina-vysper"
	serverVersion = "0.1.0"
)

// Config carries everything New needs to bring up a domain.
type Config struct {
	Name   string
	Domain string

	// Port is the c2s (RFC 6120) listener, S2SPort the server-to-server
	// (XEP-0220) listener, BoshPort the BOSH (XEP-0124) HTTP endpoint.
	Port     string
	S2SPort  string
	BoshPort string

	// TLSCertFile/TLSKeyFile enable STARTTLS on the c2s listener and TLS on
	// the s2s listener when both are set. Without them the server runs
	// cleartext c2s: no STARTTLS is advertised and every SASL mechanism,
	// PLAIN included, is offered over the unencrypted stream.
	TLSCertFile string
	TLSKeyFile  string

	// DialbackSecret authenticates s2s streams via XEP-0220's shared-secret
	// scheme (see pkg/s2s). Required for S2SPort to be usable.
	DialbackSecret string

	// Credentials resolves SASL identities; defaults to an empty in-memory
	// AccountManagement when nil.
	Credentials xmppsasl.CredentialStore
}

// Server owns every listener for one domain and the shared state
// (router, roster, offline queue, s2s dispatcher) they route through.
type Server struct {
	cfg Config
	log *logrus.Entry

	tlsConfig *tls.Config
	router    *router.Router
	accounts  xmppsasl.CredentialStore
	dispatch  *s2s.Dispatcher

	c2sListener net.Listener
	s2sListener net.Listener
	boshServer  *http.Server

	DoneCh chan struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New wires the router, storage backends and s2s dispatcher for cfg and
// prepares (but does not yet open) its listeners.
func New(cfg *Config) (*Server, error) {
	log := logrus.WithField("domain", cfg.Domain)

	credentials := cfg.Credentials
	if credentials == nil {
		credentials = storage.NewAccountManagement()
	}

	var tlsConfig *tls.Config
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "loading TLS certificate")
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	roster := storage.NewRosterManager()
	offline := storage.NewOfflineStore()

	var dispatch *s2s.Dispatcher
	var dispatchIface router.S2SDispatcher
	if cfg.DialbackSecret != "" {
		dispatch = s2s.New(cfg.Domain, s2s.DialbackSecret(cfg.DialbackSecret), tlsConfig, log)
		dispatchIface = dispatch
	}

	r := router.New(cfg.Domain, roster, offline, dispatchIface, log)
	r.RegisterModule(xmppping.NewModule())
	r.RegisterModule(xmpptime.NewModule())
	r.RegisterModule(xmppversion.NewModule(serverName, serverVersion, runtime.GOOS))

	return &Server{
		cfg:       *cfg,
		log:       log,
		tlsConfig: tlsConfig,
		router:    r,
		accounts:  credentials,
		dispatch:  dispatch,
		DoneCh:    make(chan struct{}),
		stopCh:    make(chan struct{}),
	}, nil
}

// Serve opens every configured listener and blocks handling connections
// until Stop is called. It closes DoneCh on return.
func (srv *Server) Serve() {
	defer close(srv.DoneCh)

	var wg sync.WaitGroup

	if srv.cfg.Port != "" {
		l, err := net.Listen("tcp", ":"+srv.cfg.Port)
		if err != nil {
			srv.log.WithError(err).Error("c2s listen failed")
			return
		}
		srv.c2sListener = l
		wg.Add(1)
		go func() {
			defer wg.Done()
			srv.serveC2S(l)
		}()
	}

	if srv.cfg.S2SPort != "" && srv.dispatch != nil {
		l, err := net.Listen("tcp", ":"+srv.cfg.S2SPort)
		if err != nil {
			srv.log.WithError(err).Error("s2s listen failed")
		} else {
			srv.s2sListener = l
			wg.Add(1)
			go func() {
				defer wg.Done()
				srv.serveS2S(l)
			}()
		}
	}

	if srv.cfg.BoshPort != "" {
		handler := bosh.NewHandler(srv.log)
		pipeline := bosh.NewSessionPipeline(srv.cfg.Domain, srv.router, srv.accounts, srv.log)
		mux := http.NewServeMux()
		mux.HandleFunc("/http-bind", func(w http.ResponseWriter, r *http.Request) {
			handler.ServeHTTP(w, r, pipeline)
		})
		srv.boshServer = &http.Server{Addr: ":" + srv.cfg.BoshPort, Handler: mux}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.boshServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				srv.log.WithError(err).Error("bosh server failed")
			}
		}()
	}

	<-srv.stopCh
	if srv.c2sListener != nil {
		srv.c2sListener.Close()
	}
	if srv.s2sListener != nil {
		srv.s2sListener.Close()
	}
	if srv.boshServer != nil {
		srv.boshServer.Close()
	}
	wg.Wait()
}

func (srv *Server) serveC2S(l net.Listener) {
	var id int64
	for {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		id++
		streamID := srv.cfg.Domain + "-" + time.Now().Format("20060102150405") + "-" + strconv.FormatInt(id, 10)
		s := session.New(streamID, srv.cfg.Domain, conn, srv.tlsConfig, srv.router, srv.accounts, srv.log)
		go s.Run()
	}
}

func (srv *Server) serveS2S(l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		is := s2s.NewInboundSession(conn, srv.cfg.Domain, srv.dispatch, srv.router, srv.log)
		go is.Run()
	}
}

// Stop signals Serve to close every listener and wait for connections to
// drain their accept loops. It does not forcibly close in-flight sessions;
// the caller (main) enforces its own shutdown timeout.
func (srv *Server) Stop() {
	srv.stopOnce.Do(func() { close(srv.stopCh) })
}
