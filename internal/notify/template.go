package notify

import (
	"html/template"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/shopspring/decimal"
)

type receiptView struct {
	SiteName string
	Order    *domain.Order
}

var templateFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return "$" + d.StringFixed(2) },
	"lineTotal": func(item domain.CartItem) string {
		return "$" + item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).StringFixed(2)
	},
	"date": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
}

const receiptTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif">
<h2>Thank you for shopping at {{.SiteName}}</h2>
<p>Order <strong>{{.Order.ID}}</strong>, paid {{date .Order.PaidAt}}.</p>
<table cellpadding="4">
<tr><th align="left">Item</th><th>Qty</th><th align="right">Price</th></tr>
{{range .Order.Items}}<tr><td>{{.Name}}{{if .Size}} ({{.Size}}){{end}}{{if .Color}} {{.Color}}{{end}}</td><td align="center">{{.Quantity}}</td><td align="right">{{lineTotal .}}</td></tr>
{{end}}<tr><td colspan="2">Items</td><td align="right">{{money .Order.ItemsPrice}}</td></tr>
<tr><td colspan="2">Shipping ({{.Order.DeliveryDate}})</td><td align="right">{{money .Order.ShippingPrice}}</td></tr>
<tr><td colspan="2">Tax</td><td align="right">{{money .Order.TaxPrice}}</td></tr>
<tr><td colspan="2"><strong>Total</strong></td><td align="right"><strong>{{money .Order.TotalPrice}}</strong></td></tr>
</table>
<p>Ship to: {{.Order.ShippingAddress.FullName}}, {{.Order.ShippingAddress.Street}}, {{.Order.ShippingAddress.City}} {{.Order.ShippingAddress.PostalCode}}, {{.Order.ShippingAddress.Country}}</p>
</body>
</html>
`
