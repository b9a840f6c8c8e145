// cmd/chat/main.go
// Main entry point for the chat client
// Bootstraps all components, connects to the server and runs the session loop

package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrBlankCoding/Channel-Chat/internal/chat"
	"github.com/MrBlankCoding/Channel-Chat/internal/common/utils"
	"github.com/MrBlankCoding/Channel-Chat/internal/config"
	"github.com/MrBlankCoding/Channel-Chat/internal/gif"
	"github.com/MrBlankCoding/Channel-Chat/internal/localstate"
	"github.com/MrBlankCoding/Channel-Chat/internal/notifications"
	"github.com/MrBlankCoding/Channel-Chat/internal/storage"
	"github.com/MrBlankCoding/Channel-Chat/internal/transport"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("========================================")
	log.Println("💬 Starting Channel Chat client")
	log.Println("========================================")

	// 1. Load environment variables
	log.Println("📁 Step 1: Loading .env file...")
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found (%v), using environment variables", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// 2. Load configuration
	log.Println("\n📋 Step 2: Loading configuration...")
	cfg := config.Load()
	log.Println("✅ Configuration loaded")

	// 3. Validate configuration
	log.Println("\n✔️  Step 3: Validating configuration...")
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuration validation failed:", err)
	}
	log.Println("✅ Configuration is valid")

	if cfg.AuthToken != "" {
		claims, err := utils.InspectToken(cfg.AuthToken)
		if err != nil {
			log.Fatal("❌ Session token rejected:", err)
		}
		if claims.Username != "" && claims.Username != cfg.Username {
			log.Printf("⚠️  Token was issued for %q, configured username is %q", claims.Username, cfg.Username)
		}
		if !claims.ExpiresAt.IsZero() {
			log.Printf("   Token expires at %s", claims.ExpiresAt.Format(time.RFC3339))
		}
	}

	// 4. Open local state
	log.Println("\n🗄️  Step 4: Opening local state store...")
	var stateStore localstate.Store
	var err error
	if cfg.RedisURL != "" {
		stateStore, err = localstate.OpenRedis(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis state store failed (%v), falling back to disk", err)
			stateStore, err = localstate.OpenPebble(cfg.LocalStateDir)
		} else {
			log.Println("✅ Using Redis for local state")
		}
	} else {
		stateStore, err = localstate.OpenPebble(cfg.LocalStateDir)
	}
	if err != nil {
		log.Fatal("❌ Failed to open local state:", err)
	}
	defer stateStore.Close()
	log.Println("✅ Local state store ready")

	// 5. Initialize media storage
	log.Println("\n📦 Step 5: Initializing media storage...")
	var mediaStore storage.Service
	if cfg.UseS3 {
		mediaStore, err = storage.New(storage.Config{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Bucket:          cfg.S3BucketName,
			CDNURL:          cfg.CDNURL,
		})
		if err != nil {
			log.Fatal("❌ Failed to initialize media storage:", err)
		}
		log.Println("✅ Using S3 for media uploads")
	} else {
		log.Println("⚠️  Media uploads disabled (USE_S3 not set)")
	}

	// 6. Register device for push notifications
	log.Println("\n🔔 Step 6: Push notification registration...")
	notifSettings := notifications.NewSettingsClient(cfg.HTTPBaseURL(), cfg.AuthToken)
	if settings, err := notifSettings.Fetch(context.Background()); err != nil {
		log.Printf("⚠️  Warning: could not load notification settings: %v", err)
	} else {
		log.Printf("   Notifications enabled=%v mentions=%v sound=%v", settings.Enabled, settings.Mentions, settings.SoundEnabled)
	}
	if cfg.EnablePushNotifications {
		registrar, err := notifications.NewFCMRegistrar(context.Background())
		if err != nil {
			log.Printf("⚠️  Warning: push registration unavailable: %v", err)
		} else if err := registrar.Register(context.Background(), cfg.DeviceToken, cfg.Room); err != nil {
			log.Printf("⚠️  Warning: push registration failed: %v", err)
		} else {
			defer registrar.Unregister(context.Background(), cfg.DeviceToken, cfg.Room)
			log.Println("✅ Device registered for push notifications")
		}
	} else {
		log.Println("⚠️  Push notifications disabled")
	}

	// 7. GIF search client
	log.Println("\n🎞️  Step 7: GIF search...")
	var gifClient *gif.Client
	if cfg.GIFAPIKey != "" {
		gifClient = gif.NewClient(cfg.GIFAPIKey)
		log.Println("✅ GIF search enabled")
	} else {
		log.Println("⚠️  GIF search disabled (no API key)")
	}

	// 8. Connect to the chat server
	log.Println("\n🔌 Step 8: Connecting to chat server...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := transport.Dial(ctx, transport.Options{
		URL:       cfg.ServerURL,
		AuthToken: cfg.AuthToken,
		Room:      cfg.Room,
	})
	if err != nil {
		log.Fatal("❌ Failed to connect:", err)
	}
	defer conn.Close()
	log.Printf("✅ Connected to %s (room %s)", cfg.ServerURL, cfg.Room)

	// 9. Build the chat core
	log.Println("\n⚙️  Step 9: Building chat core...")
	projector := consoleProjector{}
	store := chat.NewMessageStore()
	presence := chat.NewPresenceTracker()
	engine := chat.NewEngine(store, presence, conn, projector, cfg.Username)
	pager := chat.NewPaginationController(engine, conn, projector)
	engine.SetPager(pager)
	typing := chat.NewTypingNotifier(conn)

	var uploads *chat.UploadManager
	if mediaStore != nil {
		uploads = chat.NewUploadManager(engine, mediaStore, projector)
	}

	events := make(chan chat.Inbound, 256)
	connUp := make(chan bool, 8)

	session := chat.NewSession(chat.SessionOptions{
		Room:   cfg.Room,
		Engine: engine,
		Pager:  pager,
		Typing: typing,
		State:  stateStore,
		Events: events,
		ConnUp: connUp,
	})
	log.Println("✅ Chat core ready")

	// Forward transport frames into the session loop
	go func() {
		defer close(events)
		for {
			select {
			case evt, ok := <-conn.Events():
				if !ok {
					return
				}
				events <- chat.Inbound{Type: evt.Type, Data: evt.Data}
			case st, ok := <-conn.States():
				if !ok {
					return
				}
				connUp <- st == transport.StateConnected
			case <-ctx.Done():
				return
			}
		}
	}()

	go session.Run(ctx)
	log.Println("✅ Session loop started")

	// 10. Debug / metrics endpoint
	log.Println("\n🛣️  Step 10: Starting debug endpoint...")
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/healthz", healthCheck).Methods("GET")
	router.HandleFunc("/state", stateHandler(session)).Methods("GET")

	control := &controlHandler{session: session, uploads: uploads, gifs: gifClient, settings: notifSettings}
	control.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         cfg.DebugAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("✅ Debug endpoint on http://%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Debug endpoint failed:", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n⚠️  Shutdown signal received...")

	cancel()
	select {
	case <-session.Done():
	case <-time.After(10 * time.Second):
		log.Println("⚠️  Session loop did not stop in time")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Debug endpoint forced to shutdown: %v", err)
	}

	log.Println("✅ Client exited gracefully")
}

var startTime = time.Now()

// healthCheck returns client health status
func healthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// stateHandler reports the session counters
func stateHandler(session *chat.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status, err := session.Status(ctx)
		if err != nil {
			utils.RespondWithError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, status)
	}
}
