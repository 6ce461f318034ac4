package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"sort"    // sort orders pricing tiers by ceiling
	"strconv" // strconv converts strings to other types
	"strings" // strings splits the tier list format
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and policy knobs.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to sign admin JWTs
	AccessTTLMin int    // admin access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for admin password hashing

	AdminEmail    string // bootstrap admin email; empty skips the bootstrap
	AdminPassword string // bootstrap admin password, hashed before storage

	RabbitURL string // AMQP broker URL for notification events (optional)

	AsaasBaseURL      string // payment gateway API base URL
	AsaasAPIKey       string // payment gateway API key; required in prod
	AsaasWebhookToken string // expected asaas-access-token header (optional)

	PaymentExpiryHours int // age after which an unpaid charge is swept

	Pricing Pricing // pricing policy, see below
}

// Tier is one step of the day-use price table.  The first tier whose
// MaxGuests is greater than or equal to the requested headcount wins.
type Tier struct {
	MaxGuests  int   // headcount ceiling for this tier
	PriceCents int64 // nightly price in cents
}

// Pricing is the venue's pricing and booking policy.  Tiers are kept in
// ascending ceiling order; the first-matching-tier rule is the authoritative
// tie-break.
type Pricing struct {
	Tiers             []Tier // day-use tiers, ascending by MaxGuests
	CabinPriceCents   int64  // flat per-cabin nightly price
	BaptismPriceCents int64  // flat ceremony price
	MaxCabins         int    // total cabin units on the grounds
	MinAdvanceDays    int    // minimum advance-booking days
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The payment gateway
// API key is only fatal in prod; in other environments a warning is logged
// so the service can run against the sandbox or with checkout disabled.
func Load() Config {
	cfg := Config{
		Env:          must("APP_ENV"),      // environment (dev/test/prod)
		Port:         must("APP_PORT"),     // port to bind the HTTP server
		DBUser:       must("DB_USER"),      // database user
		DBPass:       os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:       must("DB_HOST"),      // database host
		DBPort:       must("DB_PORT"),      // database port
		DBName:       must("DB_NAME"),      // database name
		JWTSecret:    must("JWT_SECRET"),   // secret for signing admin JWTs
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:   mustInt("BCRYPT_COST"),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),    // optional startup admin seed
		AdminPassword: os.Getenv("ADMIN_PASSWORD"), // required when ADMIN_EMAIL is set

		RabbitURL: os.Getenv("RABBITMQ_URL"), // empty disables notifications

		AsaasBaseURL:      envDefault("ASAAS_BASE_URL", "https://sandbox.asaas.com/api/v3"),
		AsaasAPIKey:       os.Getenv("ASAAS_API_KEY"),
		AsaasWebhookToken: os.Getenv("ASAAS_WEBHOOK_TOKEN"),

		PaymentExpiryHours: envDefaultInt("PAYMENT_EXPIRY_HOURS", 48),

		Pricing: loadPricing(),
	}
	if cfg.AdminEmail != "" && cfg.AdminPassword == "" {
		log.Fatal("ADMIN_EMAIL is set but ADMIN_PASSWORD is empty")
	}
	if cfg.AsaasAPIKey == "" {
		if cfg.Env == "prod" {
			log.Fatal("missing required env var: ASAAS_API_KEY")
		}
		log.Printf("config: ASAAS_API_KEY not set; gateway calls will fail until configured")
	}
	return cfg
}

// loadPricing builds the pricing policy from environment variables, falling
// back to the venue's standard table when unset.  PRICE_TIERS uses the
// format "ceiling:cents,ceiling:cents,...".
func loadPricing() Pricing {
	p := Pricing{
		CabinPriceCents:   int64(envDefaultInt("CABIN_PRICE_CENTS", 15000)),
		BaptismPriceCents: int64(envDefaultInt("BAPTISM_PRICE_CENTS", 60000)),
		MaxCabins:         envDefaultInt("MAX_CABINS", 10),
		MinAdvanceDays:    envDefaultInt("MIN_ADVANCE_DAYS", 2),
	}
	raw := envDefault("PRICE_TIERS", "30:100000,60:150000,100:200000")
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ":", 2)
		if len(fields) != 2 {
			log.Fatalf("invalid PRICE_TIERS entry: %q", part)
		}
		maxGuests, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil || maxGuests <= 0 {
			log.Fatalf("invalid tier ceiling in PRICE_TIERS: %q", part)
		}
		cents, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil || cents < 0 {
			log.Fatalf("invalid tier price in PRICE_TIERS: %q", part)
		}
		p.Tiers = append(p.Tiers, Tier{MaxGuests: maxGuests, PriceCents: cents})
	}
	if len(p.Tiers) == 0 {
		log.Fatal("PRICE_TIERS resolved to an empty tier list")
	}
	// Tiers must be evaluable in ascending ceiling order.
	sort.Slice(p.Tiers, func(i, j int) bool { return p.Tiers[i].MaxGuests < p.Tiers[j].MaxGuests })
	return p
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// envDefault returns the variable's value or the given default when unset.
func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDefaultInt is like envDefault for integer values.  Invalid numbers are
// fatal rather than silently replaced.
func envDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}
