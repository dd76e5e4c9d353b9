package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/larkwing-games/werewolf-server/internal/game"
)

// Config holds everything tunable from the environment.
type Config struct {
	Port           string
	AllowedOrigins string

	DataDir        string
	MaxAvatarBytes int64

	JWTSecret string

	Durations game.StageDurations
}

// Load reads .env if present, then the environment, falling back to
// documented defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	defaults := game.DefaultDurations()
	return &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		DataDir:        getEnv("DATA_DIR", "./data"),
		MaxAvatarBytes: int64(getEnvAsInt("MAX_AVATAR_BYTES", 8<<20)),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
		Durations: game.StageDurations{
			RoleAssign:      getEnvAsInt("STAGE_ROLE_ASSIGN_SECONDS", defaults.RoleAssign),
			NightStart:      getEnvAsInt("STAGE_NIGHT_START_SECONDS", defaults.NightStart),
			WerewolfTurn:    getEnvAsInt("STAGE_WEREWOLF_TURN_SECONDS", defaults.WerewolfTurn),
			WitchTurn:       getEnvAsInt("STAGE_WITCH_TURN_SECONDS", defaults.WitchTurn),
			SeerTurn:        getEnvAsInt("STAGE_SEER_TURN_SECONDS", defaults.SeerTurn),
			GuardTurn:       getEnvAsInt("STAGE_GUARD_TURN_SECONDS", defaults.GuardTurn),
			NightResolve:    getEnvAsInt("STAGE_NIGHT_RESOLVE_SECONDS", defaults.NightResolve),
			Dawn:            getEnvAsInt("STAGE_DAWN_SECONDS", defaults.Dawn),
			SheriffElection: getEnvAsInt("STAGE_SHERIFF_ELECTION_SECONDS", defaults.SheriffElection),
			SheriffSpeech:   getEnvAsInt("STAGE_SHERIFF_SPEECH_SECONDS", defaults.SheriffSpeech),
			SheriffVote:     getEnvAsInt("STAGE_SHERIFF_VOTE_SECONDS", defaults.SheriffVote),
			SheriffResult:   getEnvAsInt("STAGE_SHERIFF_RESULT_SECONDS", defaults.SheriffResult),
			SpeechOrder:     getEnvAsInt("STAGE_SPEECH_ORDER_SECONDS", defaults.SpeechOrder),
			Speech:          getEnvAsInt("STAGE_SPEECH_SECONDS", defaults.Speech),
			Vote:            getEnvAsInt("STAGE_VOTE_SECONDS", defaults.Vote),
			VoteResolve:     getEnvAsInt("STAGE_VOTE_RESOLVE_SECONDS", defaults.VoteResolve),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Printf("Invalid integer for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}
