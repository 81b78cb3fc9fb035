package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/peerpay/backend/internal/models"
)

const (
	MessageTypePacs008 = "pacs.008.001.08"
	MessageTypePacs002 = "pacs.002.001.08"

	// Both parties hold accounts with us, so debtor and creditor agent match.
	institutionBIC = "PEERUS33"
)

// ISO20022Service renders transaction records as ISO 20022 messages for
// users who need a bank-style receipt.
type ISO20022Service struct {
	history *HistoryService
	now     func() time.Time
}

func NewISO20022Service(history *HistoryService) *ISO20022Service {
	return &ISO20022Service{
		history: history,
		now:     time.Now,
	}
}

// Receipt builds the requested message for a record the user is party to.
// pacs.008 is only issued for completed transfers; pacs.002 reports the
// status of any record.
func (iso *ISO20022Service) Receipt(ctx context.Context, userID int64, reference, messageType string) (string, error) {
	rec, err := iso.history.GetTransaction(ctx, userID, reference)
	if err != nil {
		return "", err
	}

	var doc any
	switch messageType {
	case "", MessageTypePacs008:
		if rec.Type != models.TransactionTypeTransfer || rec.Status != models.TransactionStatusCompleted {
			return "", ErrInvalidRequest.WithMessage("Only completed transfers have a pacs.008 receipt")
		}
		doc = iso.CreatePacs008(rec)
	case MessageTypePacs002:
		doc = iso.CreatePacs002(rec, statusCode(rec.Status))
	default:
		return "", ErrInvalidRequest.WithMessage("Unsupported message type %q", messageType)
	}
	return iso.ConvertToXML(doc)
}

// CreatePacs008 creates a pacs.008 FIToFICustomerCreditTransfer message
func (iso *ISO20022Service) CreatePacs008(rec *models.TransactionRecord) *pacs_v08.FIToFICustomerCreditTransferV08 {
	settlementDate := rec.CreatedAt
	if rec.CompletedAt != nil {
		settlementDate = *rec.CompletedAt
	}
	amount := pacs_v08.ActiveCurrencyAndAmount{
		Ccy:   common.ActiveCurrencyCode(rec.Currency),
		Value: rec.Amount.InexactFloat64(),
	}
	txID := common.Max35Text(fmt.Sprintf("%d", rec.ID))

	return &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:             common.Max35Text(newMessageID()),
			CreDtTm:           common.ISODateTime(iso.now()),
			NbOfTxs:           "1",
			TtlIntrBkSttlmAmt: &amount,
			IntrBkSttlmDt:     (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "INGA", // settled on our own books
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &txID,
					EndToEndId: endToEndID(rec),
					TxId:       &txID,
				},
				IntrBkSttlmAmt: amount,
				IntrBkSttlmDt:  (*common.ISODate)(&settlementDate),
				ChrgBr:         "SLEV",
				DbtrAgt:        institution(),
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(rec.SenderUsername)}[0],
				},
				CdtrAgt: institution(),
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(rec.ReceiverUsername)}[0],
				},
			},
		},
	}
}

// CreatePacs002 creates a pacs.002 payment status report
func (iso *ISO20022Service) CreatePacs002(rec *models.TransactionRecord, status string) *pacs_v08.FIToFIPaymentStatusReportV08 {
	txID := common.Max35Text(fmt.Sprintf("%d", rec.ID))
	return &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(newMessageID()),
			CreDtTm: common.ISODateTime(iso.now()),
		},
		TxInfAndSts: []pacs_v08.PaymentTransaction80{
			{
				OrgnlInstrId:    &txID,
				OrgnlEndToEndId: &[]common.Max35Text{endToEndID(rec)}[0],
				OrgnlTxId:       &txID,
				TxSts:           &[]pacs_v08.ExternalPaymentTransactionStatus1Code{pacs_v08.ExternalPaymentTransactionStatus1Code(status)}[0],
			},
		},
	}
}

// ConvertToXML converts ISO20022 document to XML string
func (iso *ISO20022Service) ConvertToXML(doc any) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}

func institution() pacs_v08.BranchAndFinancialInstitutionIdentification6 {
	return pacs_v08.BranchAndFinancialInstitutionIdentification6{
		FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
			BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(institutionBIC)}[0],
		},
	}
}

func statusCode(status models.TransactionStatus) string {
	switch status {
	case models.TransactionStatusCompleted:
		return "ACSC"
	case models.TransactionStatusFailed:
		return "RJCT"
	default:
		return "PDNG"
	}
}

// endToEndID is the public reference without dashes, which fits Max35Text.
func endToEndID(rec *models.TransactionRecord) common.Max35Text {
	return common.Max35Text(strings.ReplaceAll(rec.Reference, "-", ""))
}

// newMessageID fits a UUID into Max35Text by dropping the dashes.
func newMessageID() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:])
}
