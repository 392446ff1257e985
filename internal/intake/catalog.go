package intake

// OtherBrand is the escape option that switches the flow to free-text brand entry.
const OtherBrand = "Other"

// Category groups device types offered during intake.
type Category struct {
	Name          string
	Subcategories []Subcategory
}

// Subcategory is a device type with the brands we service for it.
type Subcategory struct {
	Name   string
	Brands []string
}

// Catalog enumerates the choices presented by the intake flow.
type Catalog struct {
	Branches   []string
	Categories []Category
}

// DefaultCatalog returns the branches and device catalog of the service center.
func DefaultCatalog() Catalog {
	return Catalog{
		Branches: []string{"🏢 Dushanbe", "🏢 Khujand"},
		Categories: []Category{
			{
				Name: "💻 Laptops and PCs",
				Subcategories: []Subcategory{
					{Name: "💻 Laptops", Brands: []string{"HP", "Dell", "Lenovo", "Asus", "Acer", "Apple", "MSI", "Huawei", "Xiaomi"}},
					{Name: "🖥 Desktop PCs", Brands: []string{"Intel", "AMD", "Custom", "HP", "Dell", "Lenovo", "Acer", "Asus"}},
					{Name: "🗄 Servers", Brands: []string{"HP", "Dell", "Lenovo", "Supermicro", "Cisco", "IBM", "Fujitsu"}},
					{Name: "🖨 Printers and MFPs", Brands: []string{"HP", "Canon", "Epson", "Xerox", "Brother", "Pantum", "Kyocera", "Ricoh"}},
				},
			},
			{
				Name: "🏠 Home appliances",
				Subcategories: []Subcategory{
					{Name: "📺 TVs", Brands: []string{"Samsung", "LG", "Sony", "Xiaomi", "TCL", "Hisense", "Philips", "Artel"}},
					{Name: "🧺 Washing machines", Brands: []string{"LG", "Samsung", "Bosch", "Indesit", "Artel", "Midea", "Electrolux", "Whirlpool"}},
					{Name: "❄️ Air conditioners", Brands: []string{"LG", "Samsung", "Midea", "Gree", "Hisense", "Artel", "Haier", "Panasonic"}},
					{Name: "🍽 Dishwashers", Brands: []string{"Bosch", "Siemens", "Electrolux", "Hansa", "Midea", "AEG", "Candy"}},
					{Name: "🔥 Water heaters", Brands: []string{"Ariston", "Thermex", "Timberk", "Electrolux", "Atlantic", "Baxi"}},
					{Name: "📡 Microwave ovens", Brands: []string{"Samsung", "LG", "Panasonic", "Midea", "Sharp"}},
					{Name: "🧹 Vacuum cleaners", Brands: []string{"Dyson", "Samsung", "LG", "Philips", "Xiaomi", "Bosch"}},
				},
			},
			{
				Name: "🔐 Automation and security",
				Subcategories: []Subcategory{
					{Name: "🌐 Structured cabling", Brands: []string{"Cisco", "MikroTik", "TP-Link", "Ubiquiti"}},
					{Name: "🚨 Alarm systems", Brands: []string{"Ajax", "Bolid", "Hikvision"}},
					{Name: "📹 CCTV", Brands: []string{"Hikvision", "Dahua", "Uniview", "EZVIZ"}},
					{Name: "🏡 Smart home", Brands: []string{"Xiaomi", "Aqara", "Tuya", "Sonoff"}},
				},
			},
			{
				Name: "📊 Business software",
				Subcategories: []Subcategory{
					{Name: "📊 1C Accounting", Brands: []string{"1C"}},
					{Name: "📲 Telegram + 1C integration", Brands: []string{"1C", "Telegram"}},
				},
			},
		},
	}
}

// CategoryNames lists category names in display order.
func (c Catalog) CategoryNames() []string {
	names := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		names = append(names, cat.Name)
	}
	return names
}

// Category finds a category by name.
func (c Catalog) Category(name string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

// SubcategoryNames lists the device types of a category.
func (c Catalog) SubcategoryNames(category string) []string {
	cat, ok := c.Category(category)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(cat.Subcategories))
	for _, sub := range cat.Subcategories {
		names = append(names, sub.Name)
	}
	return names
}

// BrandOptions lists the brands for a subcategory followed by OtherBrand.
func (c Catalog) BrandOptions(category, subcategory string) []string {
	cat, ok := c.Category(category)
	if !ok {
		return []string{OtherBrand}
	}
	for _, sub := range cat.Subcategories {
		if sub.Name == subcategory {
			out := make([]string, 0, len(sub.Brands)+1)
			out = append(out, sub.Brands...)
			return append(out, OtherBrand)
		}
	}
	return []string{OtherBrand}
}
