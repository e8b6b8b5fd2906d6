package domain

import (
	"fmt"
	"strings"
)

// LeadDetail es la respuesta completa de la API para un lead.
type LeadDetail struct {
	ID           string
	CreatedTime  string
	FieldData    []FieldData
	AdID         string
	AdName       string
	AdsetID      string
	AdsetName    string
	CampaignID   string
	CampaignName string
	FormID       string
	IsOrganic    bool
}

// FieldData es una respuesta del formulario; puede traer varios valores.
type FieldData struct {
	Name   string
	Values []string
}

// LeadRecord se construye una vez por lead, se entrega al dispatcher y se descarta.
type LeadRecord struct {
	LeadID       string
	CreatedTime  string
	AdID         string
	AdName       string
	AdsetID      string
	AdsetName    string
	CampaignID   string
	CampaignName string
	FormID       string
	IsOrganic    bool
	Fields       map[string]string
}

func (r LeadRecord) PartitionKey() string {
	return r.LeadID
}

// Field devuelve el valor de un campo del formulario o "" si no existe.
func (r LeadRecord) Field(name string) string {
	return r.Fields[name]
}

// NewLeadRecord copia los escalares del detalle y aplana field_data.
func NewLeadRecord(d *LeadDetail) LeadRecord {
	return LeadRecord{
		LeadID:       d.ID,
		CreatedTime:  d.CreatedTime,
		AdID:         d.AdID,
		AdName:       d.AdName,
		AdsetID:      d.AdsetID,
		AdsetName:    d.AdsetName,
		CampaignID:   d.CampaignID,
		CampaignName: d.CampaignName,
		FormID:       d.FormID,
		IsOrganic:    d.IsOrganic,
		Fields:       FlattenFieldData(d.FieldData),
	}
}

// FlattenFieldData se queda con el primer valor de cada campo.
// Un campo sin valores queda como "" y un nombre repetido sobrescribe al anterior.
func FlattenFieldData(data []FieldData) map[string]string {
	fields := make(map[string]string, len(data))
	for _, f := range data {
		if len(f.Values) == 0 {
			fields[f.Name] = ""
			continue
		}
		fields[f.Name] = f.Values[0]
	}
	return fields
}

// --- Proyecciones para los sinks ---

// LeadNotification es el aviso legible que se envía al equipo comercial.
type LeadNotification struct {
	LeadID  string
	To      string
	Subject string
	Body    string
}

// CRMLead es el mapeo de campos que espera el CRM.
type CRMLead struct {
	LeadID    string `json:"leadId"`
	Source    string `json:"source"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Company   string `json:"company"`
	Notes     string `json:"notes"`
}

func (c CRMLead) PartitionKey() string {
	return c.LeadID
}

const (
	CRMSourceLeadAd     = "Facebook Lead Ad"
	NotificationSubject = "New Facebook Lead Received"

	// CRMTopic es el topic por defecto donde se publican los leads para el CRM.
	CRMTopic = "crm-leads"
	// LeadCRMRequested es el tipo del evento de integración que lleva un CRMLead.
	LeadCRMRequested = "lead.crm_requested"
)

// NewLeadNotification arma el cuerpo del aviso; los campos vacíos se muestran como N/A.
func NewLeadNotification(r LeadRecord, to string) LeadNotification {
	var b strings.Builder
	b.WriteString("New lead received from Facebook:\n\n")
	fmt.Fprintf(&b, "Lead ID: %s\n", r.LeadID)
	fmt.Fprintf(&b, "Name: %s\n", orNA(r.Field("full_name")))
	fmt.Fprintf(&b, "Email: %s\n", orNA(r.Field("email")))
	fmt.Fprintf(&b, "Phone: %s\n", orNA(r.Field("phone_number")))
	fmt.Fprintf(&b, "Campaign: %s\n", orNA(r.CampaignName))
	fmt.Fprintf(&b, "Created: %s\n", r.CreatedTime)

	return LeadNotification{
		LeadID:  r.LeadID,
		To:      to,
		Subject: NotificationSubject,
		Body:    b.String(),
	}
}

// NewCRMLead proyecta el registro al formato del CRM.
func NewCRMLead(r LeadRecord) CRMLead {
	return CRMLead{
		LeadID:    r.LeadID,
		Source:    CRMSourceLeadAd,
		FirstName: r.Field("first_name"),
		LastName:  r.Field("last_name"),
		Email:     r.Field("email"),
		Phone:     r.Field("phone_number"),
		Company:   r.Field("company_name"),
		Notes:     fmt.Sprintf("Facebook Lead - Campaign: %s, Ad: %s", r.CampaignName, r.AdName),
	}
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}
