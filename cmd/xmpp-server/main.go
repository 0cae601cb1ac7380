package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

func main() {
	domain := flag.String("domain", "localhost", "served XMPP domain")
	c2sPort := flag.String("c2s-port", "5222", "client-to-server (RFC 6120) listen port")
	s2sPort := flag.String("s2s-port", "5269", "server-to-server (XEP-0220) listen port")
	boshPort := flag.String("bosh-port", "5280", "BOSH (XEP-0124) HTTP listen port")
	tlsCert := flag.String("tls-cert", "", "PEM certificate enabling STARTTLS/s2s TLS")
	tlsKey := flag.String("tls-key", "", "PEM private key matching -tls-cert")
	dialbackSecret := flag.String("dialback-secret", "", "shared secret for XEP-0220 dialback; empty disables s2s")
	flag.Parse()

	srv, err := New(&Config{
		Name:           *domain,
		Domain:         *domain,
		Port:           *c2sPort,
		S2SPort:        *s2sPort,
		BoshPort:       *boshPort,
		TLSCertFile:    *tlsCert,
		TLSKeyFile:     *tlsKey,
		DialbackSecret: *dialbackSecret,
	})
	if err != nil {
		logrus.Fatal(err)
	}

	logrus.Info("Server start")
	go srv.Serve()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	var forceStop bool
	stopTimeout := time.NewTimer(10 * time.Second)
	stopTimeout.Stop()

mainloop:
	for {
		select {
		case sig := <-signalCh:
			if forceStop {
				logrus.Infof("Got signal %v. Forcing exit.", sig)
				break mainloop
			}
			logrus.Info("Got signal ", sig)
			srv.Stop()
			forceStop = true
			stopTimeout.Reset(10 * time.Second)
		case <-stopTimeout.C:
			logrus.Info("Shutdown timeout. Forcing exit.")
			break mainloop
		case <-srv.DoneCh:
			break mainloop
		}
	}

	logrus.Info("Exit.")
}
