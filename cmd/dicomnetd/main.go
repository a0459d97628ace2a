// Command dicomnetd is a verification and storage SCP. Received instances
// are written as DICOM files under a directory, and traffic counters are
// exported for Prometheus.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caarlos0/env/v7"
	netdicom "github.com/giesekow/go-dicomnet"
	"github.com/giesekow/go-dicomnet/association"
	"github.com/giesekow/go-dicomnet/dimse"
	"github.com/giesekow/go-dicomnet/pdu"
	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/mattn/go-colorable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/snowzach/rotatefilehook"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"golang.org/x/sync/errgroup"
)

const svcName = "dicomnetd"

type config struct {
	Addr         string        `env:"DICOMNET_ADDR"          envDefault:":11112"`
	AETitle      string        `env:"DICOMNET_AE_TITLE"      envDefault:""`
	StoreDir     string        `env:"DICOMNET_STORE_DIR"     envDefault:"store"`
	MetricsAddr  string        `env:"DICOMNET_METRICS_ADDR"  envDefault:":9102"`
	LogFile      string        `env:"DICOMNET_LOG_FILE"      envDefault:"dicomnetd.log"`
	LogLevel     string        `env:"DICOMNET_LOG_LEVEL"     envDefault:"info"`
	Verbosity    int           `env:"DICOMNET_VERBOSITY"     envDefault:"0"`
	MaxPDU       uint32        `env:"DICOMNET_MAX_PDU"       envDefault:"16384"`
	PDUTimeout   time.Duration `env:"DICOMNET_PDU_TIMEOUT"   envDefault:"60s"`
	AssocTimeout time.Duration `env:"DICOMNET_ASSOC_TIMEOUT" envDefault:"60s"`
}

func logInit(cfg config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level %q: %v", cfg.LogLevel, err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(colorable.NewColorableStdout())
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if cfg.LogFile == "" {
		return
	}
	rotateFileHook, err := rotatefilehook.NewRotateFileHook(rotatefilehook.RotateFileConfig{
		Filename:   cfg.LogFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     7,
		Level:      level,
		Formatter: &logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		},
	})
	if err != nil {
		logrus.Fatalf("Failed to initialize file rotate hook: %v", err)
	}
	logrus.AddHook(rotateFileHook)
}

// store writes instances received by C-STORE as Part 10 files.
type store struct {
	dir string
}

func (s *store) path(sopInstanceUID string) string {
	return filepath.Join(s.dir, sopInstanceUID+".dcm")
}

func (s *store) write(req *dimse.Request) error {
	meta := []struct {
		tag   tag.Tag
		value string
	}{
		{tag.MediaStorageSOPClassUID, req.AffectedSOPClassUID},
		{tag.MediaStorageSOPInstanceUID, req.AffectedSOPInstanceUID},
		{tag.TransferSyntaxUID, req.TransferSyntaxUID},
	}
	ds := dicom.Dataset{}
	for _, m := range meta {
		elem, err := dicom.NewElement(m.tag, []string{m.value})
		if err != nil {
			return fmt.Errorf("store: %s: %w", m.tag.String(), err)
		}
		ds.Elements = append(ds.Elements, elem)
	}
	for _, elem := range req.Dataset.Elements {
		if elem.Tag.Group != 0x0002 {
			ds.Elements = append(ds.Elements, elem)
		}
	}
	f, err := os.Create(s.path(req.AffectedSOPInstanceUID))
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := dicom.Write(f, ds, dicom.SkipVRVerification()); err != nil {
		f.Close()
		return fmt.Errorf("store: write %s: %w", f.Name(), err)
	}
	return f.Close()
}

func (s *store) onCStore(ctx context.Context, req *dimse.Request, rsp *netdicom.Responder) {
	log := logrus.WithFields(logrus.Fields{
		"Command":  "C-STORE",
		"Peer":     rsp.Network().Label(),
		"SOPClass": req.AffectedSOPClassUID,
		"Instance": req.AffectedSOPInstanceUID,
	})
	if req.Dataset == nil {
		log.Warn("No dataset")
		rsp.RespondStatus(dimse.Status{Status: dimse.CStoreCannotUnderstand, ErrorComment: "no dataset"})
		return
	}
	if err := s.write(req); err != nil {
		log.WithError(err).Error("Store failed")
		rsp.RespondStatus(dimse.Status{Status: dimse.CStoreOutOfResources, ErrorComment: err.Error()})
		return
	}
	log.Info("Stored")
	rsp.RespondStatus(dimse.Success)
}

func onCEcho(ctx context.Context, req *dimse.Request, rsp *netdicom.Responder) {
	logrus.WithFields(logrus.Fields{
		"Command": "C-ECHO",
		"Peer":    rsp.Network().Label(),
	}).Info("Received")
	rsp.RespondStatus(dimse.Success)
}

// registerMetrics exports the server counters.
func registerMetrics(srv *netdicom.Server) (prometheus.Counter, prometheus.Counter) {
	stats := srv.Statistics()
	counter := func(name, help string, value func(netdicom.StatisticsSnapshot) uint64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "dicomnet",
			Subsystem: "server",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(value(stats.Snapshot())) })
	}
	accepted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dicomnet",
		Subsystem: "server",
		Name:      "associations_accepted_total",
		Help:      "Number of associations accepted.",
	})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dicomnet",
		Subsystem: "server",
		Name:      "associations_rejected_total",
		Help:      "Number of associations rejected.",
	})
	prometheus.MustRegister(
		counter("received_bytes_total", "Bytes received.", func(s netdicom.StatisticsSnapshot) uint64 { return s.BytesReceived }),
		counter("sent_bytes_total", "Bytes sent.", func(s netdicom.StatisticsSnapshot) uint64 { return s.BytesSent }),
		counter("received_pdus_total", "PDUs received.", func(s netdicom.StatisticsSnapshot) uint64 { return s.PDUsReceived }),
		counter("sent_pdus_total", "PDUs sent.", func(s netdicom.StatisticsSnapshot) uint64 { return s.PDUsSent }),
		accepted,
		rejected,
	)
	return accepted, rejected
}

func main() {
	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		logrus.Fatalf("failed to load %s configuration: %v", svcName, err)
	}
	logInit(cfg)
	dicomlog.SetLevel(cfg.Verbosity)

	if err := os.MkdirAll(cfg.StoreDir, 0o755); err != nil {
		logrus.Fatalf("failed to create store directory: %v", err)
	}
	st := &store{dir: cfg.StoreDir}

	srv := &netdicom.Server{
		Config: netdicom.Config{
			Implementation:     association.Implementation{MaxPduLength: cfg.MaxPDU},
			PDUTimeout:         cfg.PDUTimeout,
			AssociationTimeout: cfg.AssocTimeout,
			StatisticsObserver: func(label string, s netdicom.StatisticsSnapshot) {
				logrus.WithFields(logrus.Fields{
					"Peer":    label,
					"RxBytes": s.BytesReceived,
					"TxBytes": s.BytesSent,
					"RxPDUs":  s.PDUsReceived,
					"TxPDUs":  s.PDUsSent,
				}).Info("Connection closed")
			},
		},
		AETitle: cfg.AETitle,
		Handlers: netdicom.Handlers{
			CEcho:  onCEcho,
			CStore: st.onCStore,
		},
	}
	accepted, rejected := registerMetrics(srv)
	srv.Events = netdicom.Events{
		OnAssociationAccepted: func(a *association.Association) {
			accepted.Inc()
			logrus.WithFields(logrus.Fields{
				"Calling": a.CallingAETitle,
				"Called":  a.CalledAETitle,
			}).Info("Association accepted")
		},
		OnAssociationRejected: func(rj *pdu.AAssociateRj) {
			rejected.Inc()
		},
		OnAbort: func(v *pdu.AAbort) {
			logrus.WithField("Abort", v.String()).Warn("Association aborted")
		},
		OnNetworkError: func(err error) {
			logrus.WithError(err).Warn("Network error")
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	hs := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	g.Go(func() error {
		logrus.WithField("Addr", cfg.MetricsAddr).Info("Serving metrics")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		logrus.WithFields(logrus.Fields{
			"Addr":    cfg.Addr,
			"AETitle": cfg.AETitle,
			"Store":   cfg.StoreDir,
		}).Info("Listening")
		return srv.ListenAndServe(ctx, cfg.Addr)
	})

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Fatalf("%s terminated", svcName)
	}
	logrus.Infof("%s stopped", svcName)
}
