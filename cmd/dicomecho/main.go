// Command dicomecho verifies DICOM connectivity with C-ECHO.
//
//	dicomecho [-calling AE] [-called AE] [-n count] host:port
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v7"
	netdicom "github.com/giesekow/go-dicomnet"
	"github.com/giesekow/go-dicomnet/association"
	"github.com/giesekow/go-dicomnet/dimse"
	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

type config struct {
	CallingAETitle string        `env:"DICOMECHO_CALLING_AE" envDefault:"DICOMECHO"`
	CalledAETitle  string        `env:"DICOMECHO_CALLED_AE"  envDefault:"ANY-SCP"`
	Count          int           `env:"DICOMECHO_COUNT"      envDefault:"1"`
	Timeout        time.Duration `env:"DICOMECHO_TIMEOUT"    envDefault:"30s"`
	Verbosity      int           `env:"DICOMECHO_VERBOSITY"  envDefault:"0"`
}

func main() {
	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}
	flag.StringVar(&cfg.CallingAETitle, "calling", cfg.CallingAETitle, "calling AE title")
	flag.StringVar(&cfg.CalledAETitle, "called", cfg.CalledAETitle, "called AE title")
	flag.IntVar(&cfg.Count, "n", cfg.Count, "number of C-ECHO requests")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	flag.IntVar(&cfg.Verbosity, "v", cfg.Verbosity, "protocol log verbosity, 0-2")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] host:port\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	addr := flag.Arg(0)

	logrus.SetOutput(colorable.NewColorableStdout())
	logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true})
	dicomlog.SetLevel(cfg.Verbosity)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	c := &netdicom.Client{
		Events: netdicom.Events{
			OnAssociationAccepted: func(a *association.Association) {
				logrus.WithFields(logrus.Fields{
					"Called":         a.CalledAETitle,
					"Implementation": a.ImplementationVersion,
				}).Info("Association accepted")
			},
		},
	}
	start := time.Now()
	var echoes []*dimse.Request
	for i := 0; i < cfg.Count; i++ {
		req := dimse.NewCEchoRequest()
		echoes = append(echoes, req)
		c.AddRequest(req)
	}
	if err := c.Send(ctx, addr, cfg.CallingAETitle, cfg.CalledAETitle); err != nil {
		logrus.WithError(err).Fatal("C-ECHO failed")
	}

	failed := 0
	for _, req := range echoes {
		log := logrus.WithField("MessageID", req.MessageID)
		if err := req.Err(); err != nil {
			failed++
			log.WithError(err).Error("No response")
			continue
		}
		rsps := req.Responses()
		status := rsps[len(rsps)-1].Status
		if status.Status != dimse.StatusSuccess {
			failed++
			log.WithField("Status", status.String()).Error("Failed")
			continue
		}
		log.Info("Success")
	}
	logrus.Infof("%d of %d C-ECHO succeeded in %v", len(echoes)-failed, len(echoes), time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		os.Exit(1)
	}
}
