package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedSettings(db)
	seedLots(db)

	log.Println("Seeding completed successfully!")
}

func seedSettings(db *sql.DB) {
	fmt.Println("Seeding integration settings...")
	settings := []struct {
		Key   string
		Value string
	}{
		{"checkout.fee_tiers", "80 - 15\n150 - 25\n300 - 35"},
		{"pix.beneficiary", `{"key":"11999990000","name":"Luma Pratas","city":"Sao Paulo"}`},
	}
	for _, s := range settings {
		_, err := db.Exec(`
			INSERT INTO integration_settings (key, value, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (key) DO NOTHING;
		`, s.Key, s.Value)
		if err != nil {
			log.Printf("Failed to seed setting %s: %v", s.Key, err)
		}
	}
}

func seedLots(db *sql.DB) {
	lots := []struct {
		Title         string
		Slug          string
		Status        string
		CommissionPct float64
	}{
		{"Lote Prata Setembro", "prata-setembro", "OPEN", 10},
		{"Lote Folheados Outubro", "folheados-outubro", "OPEN", 12},
		{"Lote Prata Agosto", "prata-agosto", "CLOSED", 10},
	}

	fmt.Println("Seeding lots...")
	lotIDs := make(map[string]string)
	for _, l := range lots {
		var id string
		err := db.QueryRow(`
			INSERT INTO lots (title, slug, status, commission_pct, closes_at)
			VALUES ($1, $2, $3, $4, now() + INTERVAL '14 days')
			ON CONFLICT (slug) DO UPDATE SET
				title = EXCLUDED.title,
				status = EXCLUDED.status,
				commission_pct = EXCLUDED.commission_pct
			RETURNING id;
		`, l.Title, l.Slug, l.Status, l.CommissionPct).Scan(&id)
		if err != nil {
			log.Printf("Failed to seed lot %s: %v", l.Slug, err)
			continue
		}
		lotIDs[l.Slug] = id
	}

	products := []struct {
		Lot           string
		Title         string
		RefCode       string
		BasePrice     float64
		AdditionalPct sql.NullFloat64
		MaxUnits      sql.NullInt32
		Image         string
	}{
		{"prata-setembro", "Anel Solitario Prata 925", "AN-001", 20, sql.NullFloat64{}, int32n(80), "https://images.unsplash.com/photo-1605100804763-247f67b3557e?w=800"},
		{"prata-setembro", "Brinco Argola Media", "BR-014", 35.5, f64n(5), int32n(10), "https://images.unsplash.com/photo-1535632066927-ab7c9ab60908?w=800"},
		{"prata-setembro", "Corrente Veneziana 45cm", "CO-202", 50, sql.NullFloat64{}, sql.NullInt32{}, "https://images.unsplash.com/photo-1599643478518-a784e5dc4c8f?w=800"},
		{"prata-setembro", "Pulseira Grumet", "PU-080", 42.9, sql.NullFloat64{}, int32n(40), "https://images.unsplash.com/photo-1611591437281-460bfbe1220a?w=800"},
		{"folheados-outubro", "Colar Ponto de Luz Folheado", "CL-310", 28, f64n(8), int32n(60), "https://images.unsplash.com/photo-1515562141207-7a88fb7ce338?w=800"},
		{"folheados-outubro", "Tornozeleira Bolinhas", "TO-055", 18.5, sql.NullFloat64{}, int32n(120), "https://images.unsplash.com/photo-1573408301185-9146fe634ad0?w=800"},
	}

	fmt.Println("Seeding lot products...")
	for _, p := range products {
		lotID, ok := lotIDs[p.Lot]
		if !ok {
			log.Printf("Missing lot ID for %s", p.Lot)
			continue
		}
		_, err := db.Exec(`
			INSERT INTO lot_products (lot_id, title, ref_code, base_price, additional_pct, max_units, image_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (lot_id, ref_code) DO UPDATE SET
				title = EXCLUDED.title,
				base_price = EXCLUDED.base_price,
				additional_pct = EXCLUDED.additional_pct,
				max_units = EXCLUDED.max_units,
				image_url = EXCLUDED.image_url;
		`, lotID, p.Title, p.RefCode, p.BasePrice, p.AdditionalPct, p.MaxUnits, p.Image)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.RefCode, err)
		}
	}
}

func f64n(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }
func int32n(v int32) sql.NullInt32   { return sql.NullInt32{Int32: v, Valid: true} }
