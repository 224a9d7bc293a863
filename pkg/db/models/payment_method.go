package models

// PaymentMethod is a reference entry such as cash or bank transfer.
type PaymentMethod struct {
	ID     uint   `gorm:"column:id_metodo;primaryKey;autoIncrement"`
	Nombre string `gorm:"column:nombre;not null;uniqueIndex"`
}

func (PaymentMethod) TableName() string {
	return TablePaymentMethods
}
