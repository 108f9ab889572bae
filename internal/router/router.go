package router

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "deja/docs"
	blobmem "deja/internal/adapters/blob/memory"
	mem "deja/internal/adapters/storage/memory"
	pg "deja/internal/adapters/storage/postgres"
	"deja/internal/domain/accessgrants"
	"deja/internal/domain/alerts"
	"deja/internal/domain/caregivers"
	"deja/internal/domain/dashboard"
	"deja/internal/domain/medications"
	"deja/internal/domain/patients"
	"deja/internal/domain/prescriptions"
	"deja/internal/domain/settings"
	"deja/internal/domain/stock"
	"deja/internal/middleware"
	"deja/internal/platform/metrics"
	"deja/internal/ports/auth"
	"deja/internal/ports/blob"
	"deja/internal/ports/notify"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB
	// Opcional: nil => blob store en memoria.
	Blob blob.Store

	// Senders por canal para el dispatcher de alertas; puede ser nil.
	Senders map[notify.Channel]notify.Sender

	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
	PhoneRegion string
}

// Services es el grafo de servicios ya cableado. Lo usan el router y
// los comandos de CLI que no levantan HTTP (alerts dispatch).
type Services struct {
	Patients      *patients.Service
	Grants        *accessgrants.Service
	Caregivers    *caregivers.Service
	Medications   *medications.Service
	Stock         *stock.Service
	Settings      *settings.Service
	Prescriptions *prescriptions.Service
	Alerts        *alerts.Service
	Dispatcher    *alerts.Dispatcher
	Dashboard     *dashboard.Service
}

type repos struct {
	patients      patients.Repository
	grants        accessgrants.Repository
	caregivers    caregivers.CaregiverRepository
	schedules     caregivers.ScheduleRepository
	medications   medications.Repository
	posologies    medications.PosologyRepository
	movements     stock.Repository
	settings      settings.Repository
	prescriptions prescriptions.Repository
}

func newRepos(db *sql.DB) repos {
	if db != nil {
		return repos{
			patients:      pg.NewPatientsRepo(db),
			grants:        pg.NewAccessGrantsRepo(db),
			caregivers:    pg.NewCaregiversRepo(db),
			schedules:     pg.NewSchedulesRepo(db),
			medications:   pg.NewMedicationsRepo(db),
			posologies:    pg.NewPosologiesRepo(db),
			movements:     pg.NewMovementsRepo(db),
			settings:      pg.NewSettingsRepo(db),
			prescriptions: pg.NewPrescriptionsRepo(db),
		}
	}
	return repos{
		patients:      mem.NewPatientsRepo(),
		grants:        mem.NewAccessGrantsRepo(),
		caregivers:    mem.NewCaregiversRepo(),
		schedules:     mem.NewSchedulesRepo(),
		medications:   mem.NewMedicationsRepo(),
		posologies:    mem.NewPosologiesRepo(),
		movements:     mem.NewMovementsRepo(),
		settings:      mem.NewSettingsRepo(),
		prescriptions: mem.NewPrescriptionsRepo(),
	}
}

func NewServices(opts Options) *Services {
	rp := newRepos(opts.DB)
	log := opts.Logger

	files := opts.Blob
	if files == nil {
		files = blobmem.NewStore()
	}

	grantsSvc := accessgrants.NewService(rp.grants)
	patientsSvc := patients.NewService(rp.patients, opts.PhoneRegion)
	caregiversSvc := caregivers.NewService(rp.caregivers, rp.schedules, patientsSvc, opts.PhoneRegion,
		log.With().Str("module", "caregivers").Logger())
	medicationsSvc := medications.NewService(rp.medications, rp.posologies, patientsSvc,
		log.With().Str("module", "medications").Logger())
	settingsSvc := settings.NewService(rp.settings, opts.Metrics, opts.PhoneRegion,
		log.With().Str("module", "settings").Logger())
	stockSvc := stock.NewService(rp.movements, medicationsSvc, settingsSvc, grantsSvc, opts.Metrics,
		log.With().Str("module", "stock").Logger())
	prescriptionsSvc := prescriptions.NewService(rp.prescriptions, files, patientsSvc, medicationsSvc,
		log.With().Str("module", "prescriptions").Logger())
	alertsSvc := alerts.NewService(stockSvc, prescriptionsSvc, settingsSvc)

	// borrar un medicamento arrastra su libro de stock; un paciente con
	// posologías o recetas no se puede borrar
	medicationsSvc.OnDelete(stockSvc)
	patientsSvc.OnDelete(
		[]patients.DeleteGuard{medicationsSvc, prescriptionsSvc},
		[]patients.Detacher{caregiversSvc},
	)

	return &Services{
		Patients:      patientsSvc,
		Grants:        grantsSvc,
		Caregivers:    caregiversSvc,
		Medications:   medicationsSvc,
		Stock:         stockSvc,
		Settings:      settingsSvc,
		Prescriptions: prescriptionsSvc,
		Alerts:        alertsSvc,
		Dispatcher: alerts.NewDispatcher(alertsSvc, settingsSvc, opts.Senders, opts.Metrics,
			log.With().Str("module", "alerts").Logger()),
		Dashboard: dashboard.NewService(patientsSvc, caregiversSvc, medicationsSvc, stockSvc, alertsSvc),
	}
}

func NewRouter(opts Options) http.Handler {
	return Mount(opts, NewServices(opts))
}

// Mount arma el router HTTP sobre servicios ya construidos.
func Mount(opts Options, svc *Services) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(opts.Logger, opts.Metrics))
	r.Use(middleware.Recover)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", opts.Metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Rutas por módulo. medications registra /patients/{id}/medications
	// después del mount de /patients.
	patients.RegisterRoutes(r, svc.Patients, svc.Grants)
	accessgrants.RegisterRoutes(r, svc.Grants, svc.Patients)
	caregivers.RegisterRoutes(r, svc.Caregivers, svc.Grants, svc.Patients)
	medications.RegisterRoutes(r, svc.Medications, svc.Grants)
	stock.RegisterRoutes(r, svc.Stock)
	prescriptions.RegisterRoutes(r, svc.Prescriptions)
	settings.RegisterRoutes(r, svc.Settings)
	alerts.RegisterRoutes(r, svc.Alerts)
	dashboard.RegisterRoutes(r, svc.Dashboard)

	return r
}
