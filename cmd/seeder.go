package cmd

import (
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/bareeqalyusr/bnpl-backend/internal/customer"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample accounts for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		runSeeder()
	},
}

func runSeeder() {
	cfg, err := loadConfig(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	rules, err := cfg.Business.Rules()
	if err != nil {
		log.Fatalf("invalid business rules: %v", err)
	}

	_, db, err := initDB(cfg.Database)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}
	defer db.Close()

	if clearData {
		tables := []string{
			"settlements", "payments", "repayment_schedules", "repayment_plans",
			"transactions", "purchase_requests", "customer_limit_history",
			"customers", "merchants", "users",
		}
		for _, t := range tables {
			if _, err := db.Exec("DELETE FROM " + t); err != nil {
				log.Fatalf("failed to clear %s: %v", t, err)
			}
		}
		log.Println("cleared existing data")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash seed password: %v", err)
	}

	customerID := seedUser(db, "aisha@mail.com", "Aisha Al-Harbi", "+966501112233", "customer", string(hash))
	merchantID := seedUser(db, "shop@mail.com", "Omar Electronics", "+966504445566", "merchant", string(hash))
	seedUser(db, "admin@mail.com", "Platform Admin", "+966507778899", "admin", string(hash))

	var exists int
	if err := db.Get(&exists, "SELECT 1 FROM customers WHERE user_id = $1", customerID); err != nil {
		code, err := customer.GenerateCustomerCode()
		if err != nil {
			log.Fatalf("failed to generate customer code: %v", err)
		}
		_, err = db.Exec(`INSERT INTO customers
			(user_id, customer_code, credit_limit, available_balance, outstanding_balance, status, created_at, updated_at)
			VALUES ($1, $2, $3, $3, 0, 'active', now(), now())`,
			customerID, code, rules.DefaultCreditLimit.StringFixed(2))
		if err != nil {
			log.Fatalf("failed to seed customer profile: %v", err)
		}
		log.Println("seeded customer profile for aisha@mail.com")
	}

	if err := db.Get(&exists, "SELECT 1 FROM merchants WHERE user_id = $1", merchantID); err != nil {
		_, err = db.Exec(`INSERT INTO merchants
			(user_id, shop_name, bank_name, bank_account, iban, status, is_verified,
			 total_transactions, total_volume, balance, total_commission_paid, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 'active', true, 0, 0, 0, 0, now(), now())`,
			merchantID, "Omar Electronics", "Riyad Bank", "3456789012", "SA4420000001234567891234")
		if err != nil {
			log.Fatalf("failed to seed merchant profile: %v", err)
		}
		log.Println("seeded merchant profile for shop@mail.com")
	}

	log.Println("seeding complete")
}

func seedUser(db *sqlx.DB, email, name, phone, role, hash string) int64 {
	var id int64
	if err := db.Get(&id, "SELECT id FROM users WHERE email = $1", email); err == nil {
		log.Printf("user %s already exists", email)
		return id
	}
	err := db.QueryRow(`INSERT INTO users (email, password_hash, full_name, phone, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, now(), now()) RETURNING id`,
		email, hash, name, phone, role).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed user %s: %v", email, err)
	}
	log.Printf("seeded %s user: %s", role, email)
	return id
}
