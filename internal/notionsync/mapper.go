package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/tqhuy/finfit/internal/store"
)

// ExpenseToNotionProperties converts an ExpenseRow to Notion
// properties. The Expense ID title is the idempotency key the sync
// uses to match BigQuery rows to existing pages.
func ExpenseToNotionProperties(row *store.ExpenseRow) notionapi.Properties {
	props := notionapi.Properties{
		"Expense ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: row.ExpenseID,
					},
				},
			},
		},
	}

	if row.Amount != nil {
		amount, _ := row.Amount.Float64()
		props["Amount"] = notionapi.NumberProperty{
			Number: amount,
		}
	}

	if row.Currency != "" {
		props["Currency"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: row.Currency,
			},
		}
	}

	if row.Category != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: row.Category,
			},
		}
	}

	if row.Merchant != "" {
		props["Merchant"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: row.Merchant,
					},
				},
			},
		}
	}

	if row.TransactionDate.IsValid() {
		d := notionapi.Date(time.Date(
			row.TransactionDate.Year,
			row.TransactionDate.Month,
			row.TransactionDate.Day,
			0, 0, 0, 0, time.UTC,
		))
		props["Date"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: &d,
			},
		}
	}

	if row.Source != "" {
		props["Source"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: row.Source,
			},
		}
	}

	if row.EmailAccount.Valid {
		props["Email Account"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: row.EmailAccount.StringVal,
					},
				},
			},
		}
	}

	return props
}

// extractExpenseID pulls the Expense ID title out of a Notion page.
// Returns "" when the page does not carry one.
func extractExpenseID(page notionapi.Page) string {
	prop, ok := page.Properties["Expense ID"]
	if !ok {
		return ""
	}
	title, ok := prop.(*notionapi.TitleProperty)
	if !ok || len(title.Title) == 0 {
		return ""
	}
	return title.Title[0].PlainText
}
