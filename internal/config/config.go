package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	OutputDir string

	WormsBaseURL      string
	WormsRateLimitRPS int
	WormsTimeoutMs    int

	SurveyAPIBaseURL  string
	SurveyAPIUser     string
	SurveyAPIPassword string
	SurveyPageSize    int
	SurveyTimeoutMs   int

	StationLatitude  float64
	StationLongitude float64
	StationLocality  string
	StationCountry   string
	StationProvince  string
	StationWaterBody string
	StationMinDepthM float64
	StationMaxDepthM float64
	SamplingProtocol string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "plankton.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		WormsBaseURL:      getEnv("WORMS_BASE_URL", "https://www.marinespecies.org/rest"),
		WormsRateLimitRPS: getEnvInt("WORMS_RATE_LIMIT_RPS", 3),
		WormsTimeoutMs:    getEnvInt("WORMS_TIMEOUT_MS", 20000),

		SurveyAPIBaseURL:  getEnv("SURVEY_API_BASE_URL", ""),
		SurveyAPIUser:     getEnv("SURVEY_API_USER", ""),
		SurveyAPIPassword: getEnv("SURVEY_API_PASSWORD", ""),
		SurveyPageSize:    getEnvInt("SURVEY_PAGE_SIZE", 100),
		SurveyTimeoutMs:   getEnvInt("SURVEY_TIMEOUT_MS", 30000),

		StationLatitude:  getEnvFloat("STATION_LATITUDE", 0),
		StationLongitude: getEnvFloat("STATION_LONGITUDE", 0),
		StationLocality:  getEnv("STATION_LOCALITY", "Plankton monitoring station"),
		StationCountry:   getEnv("STATION_COUNTRY", ""),
		StationProvince:  getEnv("STATION_STATE_PROVINCE", ""),
		StationWaterBody: getEnv("STATION_WATER_BODY", "Atlantic Ocean"),
		StationMinDepthM: getEnvFloat("STATION_MIN_DEPTH_M", 0),
		StationMaxDepthM: getEnvFloat("STATION_MAX_DEPTH_M", 10),
		SamplingProtocol: getEnv("SAMPLING_PROTOCOL", "Oblique tow, 200 um mesh plankton net"),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
