// Entry point for the attendance client CLI
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"attendance.client/internal/adapters/backend"
	"attendance.client/internal/adapters/camera"
	"attendance.client/internal/adapters/location"
	"attendance.client/internal/adapters/storage"
	"attendance.client/internal/config"
	"attendance.client/internal/core"
	"attendance.client/internal/core/model"
	"attendance.client/pkg/logger"
	"attendance.client/pkg/telemetry"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type photoList []string

func (p *photoList) String() string { return fmt.Sprint(*p) }
func (p *photoList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func main() {
	var (
		action    = flag.String("action", "status", "status | register | in | out | emergency-out | attest | osha | request-site | sites | watch")
		name      = flag.String("name", "", "display name (register)")
		note      = flag.String("note", "", "work note (out)")
		signature = flag.String("signature", "", "typed signature (attest)")
		affirm    = flag.Bool("affirm", false, "affirm all attestation statements (attest)")
		expiry    = flag.String("expiry", "", "credential expiry YYYY-MM-DD (osha)")
		oshaPhoto = flag.String("osha-photo", "", "credential card photo file (osha)")
		siteID    = flag.String("site", "", "registered site id (in/out)")
		other     = flag.Bool("other", false, "use a custom/other site (in/out)")
		siteName  = flag.String("site-name", "", "custom or requested site name")
		radiusM   = flag.Float64("radius", 120, "site radius in meters")
		lang      = flag.String("lang", "", "language preference: en | es")
	)
	var photos photoList
	flag.Var(&photos, "photo", "photo file for OUT evidence (repeatable, up to 3)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}

	// Configure structured logging
	logger.Setup(cfg.IsLocalDev)

	// Configure OpenTelemetry Tracing
	shutdownTracer, err := telemetry.InitTracer("attendance-client", cfg.OTLPEndpoint, cfg.IsLocalDev)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init tracer")
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	// Local persisted state
	store, err := storage.Open(cfg.StorePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening local store")
	}

	// Initialize dependencies
	client := backend.NewClient(cfg.APIURL, cfg.AppKey, time.Duration(cfg.HTTPTimeoutSeconds)*time.Second)
	locator := location.NewStaticLocator(cfg.FixLat, cfg.FixLon, cfg.FixAccuracyM, cfg.FixConfigured)
	session := core.NewSession(client, locator, camera.FileCamera{}, store, clockwork.NewRealClock(), runtime.GOOS)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Bootstrap(ctx); err != nil {
		log.Fatal().Err(err).Msg("Bootstrap failed")
	}
	logger.BindDevice(session.DeviceID())
	if *lang != "" {
		if err := session.SetLanguage(ctx, *lang); err != nil {
			log.Warn().Err(err).Msg("Could not persist language preference")
		}
	}
	if *siteID != "" {
		session.SelectSite(*siteID)
	}
	if *other {
		session.UseCustomSite(*siteName, *radiusM)
	}

	switch *action {
	case "status":
		printStatus(session)

	case "register":
		run(session.SaveName(ctx, *name))
		printStatus(session)

	case "in":
		run(session.ClockIn(ctx))
		fmt.Println("IN recorded.")
		printStatus(session)

	case "out":
		session.SetOutNote(*note)
		for _, p := range photos {
			if err := session.AddOutPhoto(ctx, p); err != nil {
				log.Fatal().Err(err).Str("photo", p).Msg("Photo capture failed")
			}
		}
		run(session.ClockOut(ctx))
		fmt.Println("OUT recorded.")
		printStatus(session)

	case "emergency-out":
		run(session.EmergencyOut(ctx))
		fmt.Println("Emergency OUT recorded. Your supervisor will review.")

	case "attest":
		statements := model.Statements{
			WatchedSafetyVideo:     *affirm,
			NotUnderInfluence:      *affirm,
			PPEInspected:           *affirm,
			NoPreExistingInjuries:  *affirm,
			UnderstoodConsequences: *affirm,
		}
		run(session.Attest(ctx, *signature, statements))
		fmt.Println("Daily attestation recorded.")

	case "osha":
		run(session.RegisterOSHA(ctx, *expiry, *oshaPhoto))
		fmt.Println("Credential uploaded. Waiting for admin approval.")

	case "request-site":
		run(session.RequestSite(ctx, *siteName, *radiusM))
		fmt.Println("Site request sent to admin.")

	case "sites":
		run(session.ReloadSites(ctx))
		if err := session.RefreshDistances(ctx); err != nil {
			log.Warn().Err(err).Msg("Could not compute distances")
		}
		for _, s := range session.SortedSites() {
			fmt.Printf("%-12s %-24s radius %s\n", s.ID, s.Name, core.FormatDistance(s.RadiusM))
		}

	case "watch":
		watch(ctx, cancel, session)

	default:
		fmt.Fprintf(os.Stderr, "unknown action %q\n", *action)
		flag.Usage()
		os.Exit(2)
	}
}

// run exits with the error message on failure; every failure is terminal for
// the single invoked action only.
func run(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("Action failed")
	}
}

func printStatus(session *core.Session) {
	gate := session.Gate()
	today, onSite := session.LiveElapsed()

	if e := session.Employee(); e != nil {
		fmt.Printf("Employee: %s (%s)\n", e.Name, e.Code)
	}
	if gate.Blocked {
		fmt.Printf("Status:   blocked (%s)\n", gate.Reason)
	} else {
		fmt.Println("Status:   ready to work")
	}
	fmt.Printf("Today:    %s\n", core.FormatHoursMinutes(today))
	if session.ClockedIn() {
		fmt.Printf("On site:  %s (%s)\n", core.FormatClock(onSite), session.CurrentSiteName())
	}
}

// watch keeps the live timers ticking and printed until interrupted.
func watch(ctx context.Context, cancel context.CancelFunc, session *core.Session) {
	go session.RunTicker(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			log.Info().Msg("Shutting down watch")
			cancel()
			return
		case <-ticker.C:
			today, onSite := session.LiveElapsed()
			line := "Today " + core.FormatHoursMinutes(today)
			if session.ClockedIn() {
				line += "  |  On site " + core.FormatClock(onSite)
				if name := session.CurrentSiteName(); name != "" {
					line += " @ " + name
				}
			}
			fmt.Printf("\r%-64s", line)
		}
	}
}
