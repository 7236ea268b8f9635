// Command seed fills a development database with customers, a dummy source
// and a few charges. Run the API once first so the schema exists.
package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/restpay/payments/internal/config"
)

func main() {
	cfg := config.MustLoad()

	dsn := mysql.Config{
		User:                 cfg.MySQL.User,
		Passwd:               cfg.MySQL.Password,
		Net:                  "tcp",
		Addr:                 cfg.MySQL.Host,
		DBName:               cfg.MySQL.Database,
		ParseTime:            true,
		AllowNativePasswords: true,
	}

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		log.Fatalf("Failed to connect to MySQL: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping MySQL: %v (user=%s host=%s db=%s)",
			err, dsn.User, dsn.Addr, dsn.DBName)
	}

	fmt.Println("Connected to MySQL successfully")

	now := time.Now()

	details, err := json.Marshal(map[string]any{"outcome": "succeeded"})
	if err != nil {
		log.Fatalf("Failed to encode source details: %v", err)
	}
	sourceID := uuid.NewString()
	if _, err := db.Exec(
		`INSERT INTO sources (id, integration, details, created_at) VALUES (?, ?, ?, ?)`,
		sourceID, "dummy", details, now,
	); err != nil {
		log.Fatalf("Failed to seed source: %v", err)
	}
	fmt.Printf("Seeded source: %s (integration: dummy)\n", sourceID)

	customers := []struct {
		userID  string
		charges []int64
	}{
		{"CUS00001", []int64{1000, 2500}},
		{"CUS00002", []int64{500}},
		{"CUS00003", []int64{12000, 300, 4500}},
	}

	customerQuery := `
		INSERT INTO customers (user_id, created_at)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE user_id = user_id
	`
	chargeQuery := `
		INSERT INTO charges (id, status, amount, currency, integration_id, integration,
		                     customer_id, source_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, c := range customers {
		if _, err := db.Exec(customerQuery, c.userID, now); err != nil {
			log.Fatalf("Failed to seed customer %s: %v", c.userID, err)
		}

		for _, amount := range c.charges {
			chargeID := uuid.NewString()
			_, err := db.Exec(chargeQuery,
				chargeID,
				"succeeded",
				amount,
				"USD",
				"ch_seed_"+chargeID[:8],
				"dummy",
				c.userID,
				sourceID,
				now,
				now,
			)
			if err != nil {
				log.Fatalf("Failed to seed charge for %s: %v", c.userID, err)
			}
		}

		fmt.Printf("Seeded customer: %s (%d charges)\n", c.userID, len(c.charges))
	}

	fmt.Println("\nSeed completed successfully!")
	fmt.Println("You can now test the API with customer IDs: CUS00001 to CUS00003")
}
