package config

import (
	"os"
	"strconv"

	"github.com/apex/log"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	AppEnv      string
	FrontendURL string

	// Remote store. Backend is "firestore" or "mongo".
	RemoteBackend       string
	FirebaseProjectID   string
	FirebaseCredentials string
	MongoURI            string
	MongoDB             string

	// Identity / gateway sessions
	JWTSecret string

	// Map defaults used until a geolocation fix arrives.
	DefaultLatitude  float64
	DefaultLongitude float64
	DefaultZoom      int
	FixZoom          int

	// Photo pipeline ceilings.
	MaxSinglePhotoBytes int
	MaxTotalPhotoBytes  int

	// Optional Cloudinary offload for encoded photos.
	PhotoStorage        string // "inline" or "cloudinary"
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		AppEnv:      getEnv("APP_ENV", "development"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		RemoteBackend:       getEnv("REMOTE_BACKEND", "firestore"),
		FirebaseProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS_FILE", "serviceAccount.json"),
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:             getEnv("MONGO_DB", "signalmap"),

		JWTSecret: getEnv("JWT_SECRET", "secret"),

		DefaultLatitude:  getEnvFloat("DEFAULT_LATITUDE", 48.8566),
		DefaultLongitude: getEnvFloat("DEFAULT_LONGITUDE", 2.3522),
		DefaultZoom:      getEnvInt("DEFAULT_ZOOM", 5),
		FixZoom:          getEnvInt("FIX_ZOOM", 15),

		MaxSinglePhotoBytes: getEnvInt("MAX_SINGLE_PHOTO_BYTES", 900_000),
		MaxTotalPhotoBytes:  getEnvInt("MAX_TOTAL_PHOTO_BYTES", 3_000_000),

		PhotoStorage:        getEnv("PHOTO_STORAGE", "inline"),
		CloudinaryCloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Warnf("invalid value for %s, using default", key)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Warnf("invalid value for %s, using default", key)
	}
	return defaultValue
}
