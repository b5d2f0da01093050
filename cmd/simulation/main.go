package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sikharm/moneyx-api/internal/accounts"
	"github.com/sikharm/moneyx-api/internal/auth"
	"github.com/sikharm/moneyx-api/internal/database"
	"github.com/sikharm/moneyx-api/internal/earnings"
	"github.com/sikharm/moneyx-api/internal/mt5"
	"github.com/sikharm/moneyx-api/pkg/middleware"
)

const (
	numAccounts   = 25
	numWorkers    = 5
	serverAddress = "http://localhost:8080"
	jwtSecret     = "simulation-secret-key"
)

var nicknames = []string{"Main", "Scalper", "Swing", "Hedge", "Funded"}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the sync API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":     {name: "Authentication"},
			"create":   {name: "Create Account"},
			"deploy":   {name: "Deploy Account"},
			"status":   {name: "Check Status"},
			"sync":     {name: "Sync Account"},
			"earnings": {name: "Get Earnings"},
		},
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// doJSON issues an authenticated request and decodes the envelope's data field
func (sc *simulationClient) doJSON(statKey, method, path string, payload, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.stats[statKey].addDuration(time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats[statKey].failures++
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Str("path", path).Msg("API response")

	if resp.StatusCode >= 400 {
		sc.stats[statKey].failures++
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return json.Unmarshal(result.Data, out)
}

func (sc *simulationClient) createAccount(nickname string, rate float64, cent bool) (*accounts.TradingAccount, error) {
	var account accounts.TradingAccount
	err := sc.doJSON("create", "POST", "/api/v1/accounts", map[string]interface{}{
		"nickname":            nickname,
		"rebate_rate_per_lot": rate,
		"is_cent_account":     cent,
	}, &account)
	if err != nil {
		return nil, err
	}
	if account.AccountID == "" {
		return nil, fmt.Errorf("no account ID in response")
	}
	return &account, nil
}

func (sc *simulationClient) deployAccount(accountID string) (*accounts.TradingAccount, error) {
	var account accounts.TradingAccount
	path := fmt.Sprintf("/api/v1/accounts/%s/deploy", accountID)
	if err := sc.doJSON("deploy", "POST", path, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (sc *simulationClient) checkStatus(accountID string) (*accounts.TradingAccount, error) {
	var account accounts.TradingAccount
	path := fmt.Sprintf("/api/v1/accounts/%s/status", accountID)
	if err := sc.doJSON("status", "GET", path, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (sc *simulationClient) syncAccount(accountID, periodType string) (*earnings.EarningsPeriodRecord, error) {
	var record earnings.EarningsPeriodRecord
	path := fmt.Sprintf("/api/v1/accounts/%s/sync", accountID)
	err := sc.doJSON("sync", "POST", path, map[string]string{"period_type": periodType}, &record)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (sc *simulationClient) getEarnings(accountID, periodType string) ([]earnings.EarningsPeriodRecord, error) {
	var records []earnings.EarningsPeriodRecord
	path := fmt.Sprintf("/api/v1/accounts/%s/earnings?period_type=%s", accountID, periodType)
	if err := sc.doJSON("earnings", "GET", path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// printPerformanceStats outputs latency statistics for every route
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("API PERFORMANCE STATISTICS")
	fmt.Println(strings.Repeat("=", 80))

	for _, stats := range sc.stats {
		if stats.totalCalls == 0 {
			continue
		}
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf(`
%s
%s
Calls:    %d (failures: %d)
Min:      %v
Max:      %v
Mean:     %v
Median:   %v
95th:     %v
99th:     %v
`, stats.name, strings.Repeat("-", len(stats.name)),
			stats.totalCalls, stats.failures,
			min.Round(time.Microsecond), max.Round(time.Microsecond),
			mean.Round(time.Microsecond), median.Round(time.Microsecond),
			p95.Round(time.Microsecond), p99.Round(time.Microsecond))
	}
}

// startStubProvider runs a stand-in MT5 bridge so the whole pipeline can be
// exercised without provider credentials. Deployments connect immediately and
// report randomized balances and deal histories.
func startStubProvider() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/users/current/accounts", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": uuid.New().String()})
	})

	mux.HandleFunc("/users/current/accounts/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/account-information"):
			_ = json.NewEncoder(w).Encode(map[string]float64{
				"balance": 1000 + rand.Float64()*9000,
				"equity":  1000 + rand.Float64()*9000,
			})
		case strings.Contains(r.URL.Path, "/history-deals/"):
			deals := make([]mt5.Deal, 0, 10)
			for i := 0; i < rand.Intn(10); i++ {
				dealType := mt5.DealTypeBuy
				if rand.Intn(2) == 0 {
					dealType = mt5.DealTypeSell
				}
				deals = append(deals, mt5.Deal{
					ID:     uuid.New().String(),
					Type:   dealType,
					Volume: float64(rand.Intn(40)+1) / 10,
					Profit: rand.Float64()*200 - 100,
				})
			}
			_ = json.NewEncoder(w).Encode(deals)
		case strings.HasSuffix(r.URL.Path, "/deploy"):
			w.WriteHeader(http.StatusNoContent)
		default:
			_ = json.NewEncoder(w).Encode(mt5.DeploymentStatus{
				State:      mt5.StateDeployed,
				Connection: mt5.ConnectionConnected,
			})
		}
	})

	return httptest.NewServer(mux)
}

// startServer boots the API in-process against the stub provider
func startServer(providerURL string) error {
	db, err := database.NewDatabase("simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	platform, err := mt5.NewClient(providerURL, "stub-token", 10*time.Second, 30*time.Second)
	if err != nil {
		return fmt.Errorf("failed to initialize MT5 client: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	middleware.Configure(jwtSecret)
	authService := auth.NewService(jwtSecret)
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret, auth.TestUserID)
	authHandlers := auth.NewGinHandlers(authService)

	accountsService := accounts.NewService(db, platform)
	accountsHandlers := accounts.NewGinHandlers(accountsService)

	earningsService := earnings.NewService(db, accountsService, platform)
	earningsHandlers := earnings.NewGinHandlers(earningsService)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/token", authHandlers.GenerateTokenHandler())

		accountsGroup := v1.Group("/accounts")
		accountsGroup.Use(middleware.JWTAuth())
		{
			accountsGroup.POST("", accountsHandlers.CreateAccountHandler())
			accountsGroup.GET("", accountsHandlers.ListAccountsHandler())
			accountsGroup.GET("/:account_id", accountsHandlers.GetAccountHandler())
			accountsGroup.DELETE("/:account_id", accountsHandlers.DeleteAccountHandler())
			accountsGroup.POST("/:account_id/deploy", accountsHandlers.DeployAccountHandler())
			accountsGroup.GET("/:account_id/status", accountsHandlers.CheckStatusHandler())
			accountsGroup.POST("/:account_id/sync", earningsHandlers.SyncAccountHandler())
			accountsGroup.GET("/:account_id/earnings", earningsHandlers.GetEarningsHandler())
		}
	}

	go func() {
		if err := router.Run(":8080"); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	return nil
}

func main() {
	provider := startStubProvider()
	defer provider.Close()

	if err := startServer(provider.URL); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}

	// Give the server a moment to start listening
	time.Sleep(500 * time.Millisecond)

	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create simulation client")
	}

	startTime := time.Now()
	accountIDs := make(chan string, numAccounts)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := 0; i < numAccounts/numWorkers; i++ {
				nickname := fmt.Sprintf("%s %d-%d", nicknames[rand.Intn(len(nicknames))], workerID, i)
				account, err := simClient.createAccount(nickname, float64(rand.Intn(50))/10, rand.Intn(4) == 0)
				if err != nil {
					log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to create account")
					continue
				}
				accountIDs <- account.AccountID
			}
		}(w)
	}

	wg.Wait()
	close(accountIDs)

	var created, deployed, synced, failed int
	statuses := make(map[string]int)

	for accountID := range accountIDs {
		created++

		if _, err := simClient.deployAccount(accountID); err != nil {
			log.Error().Err(err).Str("account_id", accountID).Msg("Failed to deploy account")
			failed++
			continue
		}
		deployed++

		account, err := simClient.checkStatus(accountID)
		if err != nil {
			log.Error().Err(err).Str("account_id", accountID).Msg("Failed to check status")
			failed++
			continue
		}
		statuses[account.Status]++

		syncOK := true
		for _, periodType := range []string{earnings.PeriodWeekly, earnings.PeriodMonthly} {
			record, err := simClient.syncAccount(accountID, periodType)
			if err != nil {
				log.Error().Err(err).Str("account_id", accountID).Str("period_type", periodType).Msg("Failed to sync account")
				syncOK = false
				continue
			}
			log.Info().
				Str("account_id", accountID).
				Str("period_type", periodType).
				Float64("lots_traded", record.LotsTraded).
				Float64("profit_loss", record.ProfitLoss).
				Float64("rebate", record.Rebate).
				Msg("Account synced")
		}
		if syncOK {
			synced++
		}

		if _, err := simClient.getEarnings(accountID, earnings.PeriodWeekly); err != nil {
			log.Error().Err(err).Str("account_id", accountID).Msg("Failed to fetch earnings")
		}
	}

	duration := time.Since(startTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("ACCOUNT SYNC SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf(`
Accounts Created:  %d
Accounts Deployed: %d
Accounts Synced:   %d
Failures:          %d
Duration:          %v

Status Distribution
-------------------
`, created, deployed, synced, failed, duration.Round(time.Millisecond))

	for status, count := range statuses {
		bar := strings.Repeat("#", count)
		fmt.Printf("%-10s: %s (%d)\n", status, bar, count)
	}

	log.Info().
		Int("created", created).
		Int("synced", synced).
		Int("failed", failed).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}
