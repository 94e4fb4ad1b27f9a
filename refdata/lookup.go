package refdata

import (
	"context"
	"strings"

	"github.com/mmdatafocus/pos_backend/checkout"
	"github.com/mmdatafocus/pos_backend/utils"
)

// Lookup finds single records in the cached lists.
type Lookup struct {
	Catalog   checkout.Catalog
	Customers checkout.CustomerDirectory
	// Attach, when set, is read instead of Customers when a customer is
	// looked up for attaching, so the point balance is current.
	Attach checkout.CustomerDirectory
	// Region is the default phone region for numbers without a country
	// prefix.
	Region string
}

func (l Lookup) FindProduct(ctx context.Context, id string) (checkout.Product, bool, error) {
	products, err := l.Catalog.ListProducts(ctx)
	if err != nil {
		return checkout.Product{}, false, err
	}
	id = strings.TrimSpace(id)
	for _, p := range products {
		if p.ID == id {
			return p, true, nil
		}
	}
	return checkout.Product{}, false, nil
}

// FindProductBySKU matches a scanned code against the SKU.
func (l Lookup) FindProductBySKU(ctx context.Context, sku string) (checkout.Product, bool, error) {
	products, err := l.Catalog.ListProducts(ctx)
	if err != nil {
		return checkout.Product{}, false, err
	}
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return checkout.Product{}, false, nil
	}
	for _, p := range products {
		if strings.EqualFold(p.SKU, sku) {
			return p, true, nil
		}
	}
	return checkout.Product{}, false, nil
}

func (l Lookup) FindCustomer(ctx context.Context, id string) (checkout.Customer, bool, error) {
	customers, err := l.attachDirectory().ListCustomers(ctx)
	if err != nil {
		return checkout.Customer{}, false, err
	}
	id = strings.TrimSpace(id)
	for _, c := range customers {
		if c.ID == id {
			return c, true, nil
		}
	}
	return checkout.Customer{}, false, nil
}

// FindCustomerByPhone compares numbers in E.164 form so "0812..." and
// "+62812..." match the same customer.
func (l Lookup) FindCustomerByPhone(ctx context.Context, phone string) (checkout.Customer, bool, error) {
	want, err := utils.NormalizePhone(phone, l.region())
	if err != nil {
		return checkout.Customer{}, false, err
	}
	customers, err := l.attachDirectory().ListCustomers(ctx)
	if err != nil {
		return checkout.Customer{}, false, err
	}
	for _, c := range customers {
		got, err := utils.NormalizePhone(c.Phone, l.region())
		if err != nil {
			continue
		}
		if got == want {
			return c, true, nil
		}
	}
	return checkout.Customer{}, false, nil
}

// SearchCustomers matches the query against names and phone digits.
func (l Lookup) SearchCustomers(ctx context.Context, query string) ([]checkout.Customer, error) {
	customers, err := l.Customers.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return customers, nil
	}
	digits := utils.DigitsOnly(q)
	var out []checkout.Customer
	for _, c := range customers {
		if strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c)
			continue
		}
		if digits != "" && strings.Contains(utils.DigitsOnly(c.Phone), digits) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (l Lookup) region() string {
	if l.Region == "" {
		return utils.CountryCode
	}
	return l.Region
}

func (l Lookup) attachDirectory() checkout.CustomerDirectory {
	if l.Attach != nil {
		return l.Attach
	}
	return l.Customers
}
