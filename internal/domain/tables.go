package domain

var Tables = []interface{}{
	&WaInstance{},
	&WaMessageLog{},
}
