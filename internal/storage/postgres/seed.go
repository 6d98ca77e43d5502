package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/catering-orders/internal/domain/auth"
)

const upsertCustomerSQL = `INSERT INTO customers (email, first_name, last_name, phone, role)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (email) DO UPDATE
	SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
		phone = EXCLUDED.phone, role = EXCLUDED.role
	RETURNING id`

const upsertMenuSQL = `INSERT INTO menus (title, description, price_per_person, minimum_guests, remaining_stock)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (title) DO UPDATE
	SET description = EXCLUDED.description, price_per_person = EXCLUDED.price_per_person,
		minimum_guests = EXCLUDED.minimum_guests, remaining_stock = EXCLUDED.remaining_stock
	RETURNING id`

// Catalog is the seed data set.
type Catalog struct {
	Customers []SeedCustomer
	Menus     []SeedMenu
}

// SeedCustomer is a catalog customer keyed by email.
type SeedCustomer struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Role      auth.Role
}

// SeedMenu is a catalog menu keyed by title.
type SeedMenu struct {
	ID             int64
	Title          string
	Description    string
	PricePerPerson decimal.Decimal
	MinimumGuests  int
	RemainingStock int
}

// ParseCatalog decodes a catalog JSON document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "customers":
			return d.Arr(func(d *jx.Decoder) error {
				cu, err := decodeSeedCustomer(d)
				if err != nil {
					return err
				}
				c.Customers = append(c.Customers, cu)
				return nil
			})
		case "menus":
			return d.Arr(func(d *jx.Decoder) error {
				m, err := decodeSeedMenu(d)
				if err != nil {
					return err
				}
				c.Menus = append(c.Menus, m)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return &c, nil
}

func decodeSeedCustomer(d *jx.Decoder) (SeedCustomer, error) {
	c := SeedCustomer{Role: auth.RoleCustomer}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "email":
			c.Email, err = d.Str()
		case "firstName":
			c.FirstName, err = d.Str()
		case "lastName":
			c.LastName, err = d.Str()
		case "phone":
			c.Phone, err = d.Str()
		case "role":
			var role string
			role, err = d.Str()
			c.Role = auth.Role(role)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return c, err
	}
	if c.Email == "" {
		return c, errors.New("customer email is required")
	}
	if !c.Role.Valid() {
		return c, errors.Errorf("customer %s: unknown role %q", c.Email, c.Role)
	}
	return c, nil
}

func decodeSeedMenu(d *jx.Decoder) (SeedMenu, error) {
	var m SeedMenu
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "title":
			v, err := d.Str()
			m.Title = v
			return err
		case "description":
			v, err := d.Str()
			m.Description = v
			return err
		case "pricePerPerson":
			v, err := d.Str()
			if err != nil {
				return err
			}
			m.PricePerPerson, err = decimal.NewFromString(v)
			return err
		case "minimumGuests":
			v, err := d.Int()
			m.MinimumGuests = v
			return err
		case "remainingStock":
			v, err := d.Int()
			m.RemainingStock = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return m, err
	}
	if m.Title == "" {
		return m, errors.New("menu title is required")
	}
	if m.MinimumGuests < 1 || m.RemainingStock < 0 {
		return m, errors.Errorf("menu %s: invalid guests or stock", m.Title)
	}
	return m, nil
}

// SeedCatalog upserts every customer and menu of c in one transaction and
// fills in their IDs.
func SeedCatalog(ctx context.Context, pool *pgxpool.Pool, c *Catalog) error {
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for i := range c.Customers {
			cu := &c.Customers[i]
			err := tx.QueryRow(ctx, upsertCustomerSQL,
				cu.Email, cu.FirstName, cu.LastName, cu.Phone, string(cu.Role),
			).Scan(&cu.ID)
			if err != nil {
				return fmt.Errorf("upserting customer %q: %w", cu.Email, err)
			}
		}
		for i := range c.Menus {
			m := &c.Menus[i]
			err := tx.QueryRow(ctx, upsertMenuSQL,
				m.Title, m.Description, m.PricePerPerson, m.MinimumGuests, m.RemainingStock,
			).Scan(&m.ID)
			if err != nil {
				return fmt.Errorf("upserting menu %q: %w", m.Title, err)
			}
		}
		return nil
	})
}
