package csconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"log/syslog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/andskur/argon2-hashing"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	TrustedProxies  []string        `yaml:"trustedproxies"`
	TrustedPlatform string          `yaml:"trustedplatform"`
	Database        DatabaseConfig  `yaml:"database"`
	User            UserConfig      `yaml:"user"`
	Production      bool            `yaml:"production"`
	Listen          ListenConfig    `yaml:"listen"`
	Logger          LoggerConfig    `yaml:"logger"`
	Studio          StudioConfig    `yaml:"studio"`
	RateLimit       RateLimitConfig `yaml:"ratelimit"`
	Captcha         CaptchaConfig   `yaml:"captcha"`
	Notify          NotifyConfig    `yaml:"notify"`
	Cors            CorsConfig      `yaml:"cors"`
}

type StudioConfig struct {
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// RateLimitConfig nombre de requêtes autorisées par fenêtre et par IP, pour chaque route
type RateLimitConfig struct {
	Track       int `yaml:"track"`
	Schedule    int `yaml:"schedule"`
	DataRequest int `yaml:"datarequest"`
	Login       int `yaml:"login"`
	Window      int `yaml:"window"` // secondes
}

type CaptchaConfig struct {
	Enable bool `yaml:"enable"`
}

type NotifyConfig struct {
	Enable bool   `yaml:"enable"`
	ApiKey string `yaml:"apikey"`
	From   string `yaml:"from"`
	To     string `yaml:"to"`
}

type CorsConfig struct {
	Origins []string `yaml:"origins"`
}

type LoggerConfig struct {
	Level  string             `yaml:"level"`
	File   LoggerFileConfig   `yaml:"file"`
	Syslog LoggerSyslogConfig `yaml:"syslog"`
}

type LoggerFileConfig struct {
	Enable     bool   `yaml:"enable"`
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxsize"`
	MaxBackups int    `yaml:"maxbackups"`
	MaxAge     int    `yaml:"maxage"`
	Compress   bool   `yaml:"compress"`
}

type LoggerSyslogConfig struct {
	Enable   bool            `yaml:"enable"`
	Protocol string          `yaml:"protocol"`
	Address  string          `yaml:"address"`
	Tag      string          `yaml:"tag"`
	Priority syslog.Priority `yaml:"priority"`
}

type ListenConfig struct {
	Website string `yaml:"website"`
}

// UserConfig mot de passe unique de l'administratrice
type UserConfig struct {
	Pass string `yaml:"pass"`
	Hash string `yaml:"hash"`
}

type DatabaseConfig struct {
	Redis RedisConfig `yaml:"redis"`
	Db    string      `yaml:"db"`
	Path  string      `yaml:"path"`
	Dsn   string      `yaml:"dsn"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	Db   int    `yaml:"db"`
}

func DefaultRateLimit() RateLimitConfig {
	return RateLimitConfig{
		Track:       30,
		Schedule:    10,
		DataRequest: 5,
		Login:       5,
		Window:      60,
	}
}

func CreateExampleConfig(filename string) (string, error) {
	example := &Config{
		Database: DatabaseConfig{
			Db:   "sqlite",
			Path: "./cantostudio.db",
		},
		User: UserConfig{
			Pass: "troque-esta-senha",
		},
		Production: false,
		Logger: LoggerConfig{
			Level: "info",
		},
		Listen: ListenConfig{
			Website: "0.0.0.0:8080",
		},
		Studio: StudioConfig{
			Name:     "Estúdio de Canto",
			Timezone: "America/Sao_Paulo",
		},
		RateLimit: DefaultRateLimit(),
		Cors: CorsConfig{
			Origins: []string{"http://localhost:3000"},
		},
	}

	if filename == "/etc/" {
		example.Listen.Website = "127.0.0.1:8000"
		example.Production = true
		example.Database.Path = "/var/lib/cantostudio/sqlite.db"
		example.Logger.File = LoggerFileConfig{
			Enable:     true,
			Path:       "/var/log/cantostudio/cantostudio.log",
			MaxSize:    100,
			MaxBackups: 30,
			MaxAge:     7,
			Compress:   true,
		}
		filename = "/etc/cantostudio/config.yaml"
	}

	return filename, WriteConfigYaml(filename, example)
}

func WriteConfigYaml(filename string, conf *Config) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0600)
}

// Charger la configuration YAML
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("impossible de lire le fichier %s: %w", filename, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("erreur de parsing YAML: %w", err)
	}

	return &config, nil
}

// LoadAndValidate charge le fichier, applique l'environnement, valide, et hash le mot de passe.
// Un mot de passe en clair dans le fichier est remplacé par son hash argon2 et le fichier réécrit.
func LoadAndValidate(configFile string) (*Config, error) {
	conf, err := LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("erreur chargement config: %w", err)
	}

	if conf.User.Pass != "" {
		hash, err := hashPassword(conf.User.Pass)
		if err != nil {
			return nil, err
		}
		conf.User.Hash = hash
		conf.User.Pass = ""
		if err := WriteConfigYaml(configFile, conf); err != nil {
			return nil, err
		}
	}

	if err := LoadEnv(""); err != nil {
		return nil, err
	}
	if err := ApplyEnv(conf); err != nil {
		return nil, err
	}

	if err := Validate(conf); err != nil {
		return nil, err
	}

	return conf, nil
}

// LoadEnv charge un fichier .env s'il existe, sans écraser les variables déjà définies
func LoadEnv(filename string) error {
	if filename == "" {
		filename = ".env"
	}
	err := godotenv.Load(filename)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("erreur lecture %s: %w", filename, err)
	}
	return nil
}

// ApplyEnv surcharge la configuration avec ADMIN_PASSWORD, DATABASE_DSN et RESEND_API_KEY
func ApplyEnv(conf *Config) error {
	if pass := os.Getenv("ADMIN_PASSWORD"); pass != "" {
		hash, err := hashPassword(pass)
		if err != nil {
			return err
		}
		conf.User.Hash = hash
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		conf.Database.Dsn = dsn
	}
	if key := os.Getenv("RESEND_API_KEY"); key != "" {
		conf.Notify.ApiKey = key
	}
	return nil
}

// Validate contrôle la configuration et complète les valeurs par défaut
func Validate(conf *Config) error {
	switch conf.Database.Db {
	case "":
		return fmt.Errorf("database.db ne peut pas être vide")
	case "sqlite":
		if conf.Database.Path == "" {
			return fmt.Errorf("database.path ne peut pas être vide")
		}
	case "mysql", "postgres":
		if conf.Database.Dsn == "" {
			return fmt.Errorf("database.dsn ne peut pas être vide")
		}
	default:
		return fmt.Errorf("le type de database doit etre sqlite, mysql ou postgres")
	}

	if conf.User.Hash == "" {
		return fmt.Errorf("aucun mot de passe administrateur configuré (user.pass ou ADMIN_PASSWORD)")
	}

	if conf.Listen.Website == "" {
		conf.Listen.Website = "localhost:8080"
	}
	if strings.HasPrefix(conf.Listen.Website, ":") {
		conf.Listen.Website = "localhost" + conf.Listen.Website
	}

	if _, err := conf.Location(); err != nil {
		return fmt.Errorf("studio.timezone invalide: %w", err)
	}

	def := DefaultRateLimit()
	if conf.RateLimit.Track <= 0 {
		conf.RateLimit.Track = def.Track
	}
	if conf.RateLimit.Schedule <= 0 {
		conf.RateLimit.Schedule = def.Schedule
	}
	if conf.RateLimit.DataRequest <= 0 {
		conf.RateLimit.DataRequest = def.DataRequest
	}
	if conf.RateLimit.Login <= 0 {
		conf.RateLimit.Login = def.Login
	}
	if conf.RateLimit.Window <= 0 {
		conf.RateLimit.Window = def.Window
	}

	if conf.Notify.Enable && (conf.Notify.ApiKey == "" || conf.Notify.To == "") {
		return fmt.Errorf("notify.apikey et notify.to sont requis quand notify.enable est actif")
	}

	return nil
}

// Location fuseau horaire utilisé pour les bornes de journée, heure locale du serveur par défaut
func (c *Config) Location() (*time.Location, error) {
	if c.Studio.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Studio.Timezone)
}

func (r RateLimitConfig) WindowDuration() time.Duration {
	return time.Duration(r.Window) * time.Second
}

func hashPassword(pass string) (string, error) {
	if len(pass) < 8 {
		return "", fmt.Errorf("le mot de passe doit contenir au moins 8 caractères")
	}
	hash, err := argon2.GenerateFromPassword([]byte(pass), argon2.DefaultParams)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CreateExample(shouldCreateExample bool, configFile string) {
	if shouldCreateExample {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
		}
		os.Exit(1)
	}

	_, err := os.Stat(configFile)
	if err != nil && os.IsNotExist(err) {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
	}
}

func handleExampleCreation(filename string) error {
	if filename == "" {
		filename = "cantostudio.yaml"
	}
	filename, err := CreateExampleConfig(filename)
	if err != nil {
		return fmt.Errorf("erreur création exemple: %w", err)
	}

	fmt.Printf("✅ Fichier exemple créé: %s\n", filename)
	fmt.Println("⚠️  user.pass sera automatiquement hash en argon2 dans user.hash au premier lancement")
	return nil
}

func DisplayConfiguration(config *Config, version string) {
	logPrintf("Cantostudio version %s", version)
	logPrintf("Mode Production %v", config.Production)
	logPrintf("Studio \"%s\" (fuseau %s)", config.Studio.Name, config.Studio.Timezone)

	logPrintf("Database")
	switch config.Database.Db {
	case "sqlite":
		logPrintf("  • Type sqlite")
		logPrintf("  • Path %s", config.Database.Path)
	case "mysql", "postgres":
		logPrintf("  • Type %s", config.Database.Db)
	}
	if config.Database.Redis.Addr != "" {
		logPrintf("  • Redis %s", config.Database.Redis.Addr)
	}

	logPrintf("Limites par minute: track=%d schedule=%d data-request=%d login=%d (fenêtre %ds)",
		config.RateLimit.Track, config.RateLimit.Schedule, config.RateLimit.DataRequest,
		config.RateLimit.Login, config.RateLimit.Window)
	logPrintf("Captcha %v", config.Captcha.Enable)
	if config.Notify.Enable {
		logPrintf("Notifications email vers %s", config.Notify.To)
	} else {
		logPrintf("Notifications email désactivées")
	}

	logPrintf("Logger en level %s", config.Logger.Level)
	if config.Logger.File.Enable {
		logPrintf("  • Fichier %s (max %d Mo, %d backups, %d jours)", config.Logger.File.Path,
			config.Logger.File.MaxSize, config.Logger.File.MaxBackups, config.Logger.File.MaxAge)
	}
	if config.Logger.Syslog.Enable {
		logPrintf("  • Syslog %s %s tag %s", config.Logger.Syslog.Protocol, config.Logger.Syslog.Address, config.Logger.Syslog.Tag)
	}
}

func logPrintf(format string, a ...any) {
	log.Info().Msg(fmt.Sprintf(format, a...))
}
