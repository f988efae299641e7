package events

import (
	"reflect"

	"go.mau.fi/whatsmeow/types/events"

	"zkeeper/internal/domain/whatsapp"
)

// EventTypeMapper mapeia tipos de eventos do whatsmeow para nomes legíveis
type EventTypeMapper struct {
	typeMap map[reflect.Type]string
}

// NewEventTypeMapper cria um novo mapeador de tipos de evento
func NewEventTypeMapper() *EventTypeMapper {
	mapper := &EventTypeMapper{
		typeMap: make(map[reflect.Type]string),
	}

	mapper.initializeTypeMap()
	return mapper
}

func (etm *EventTypeMapper) initializeTypeMap() {
	// Conexão
	etm.typeMap[reflect.TypeOf(&events.Connected{})] = "Connected"
	etm.typeMap[reflect.TypeOf(&events.Disconnected{})] = "Disconnected"
	etm.typeMap[reflect.TypeOf(&events.LoggedOut{})] = "LoggedOut"
	etm.typeMap[reflect.TypeOf(&events.ConnectFailure{})] = "ConnectFailure"
	etm.typeMap[reflect.TypeOf(&events.ClientOutdated{})] = "ClientOutdated"
	etm.typeMap[reflect.TypeOf(&events.KeepAliveRestored{})] = "KeepAliveRestored"
	etm.typeMap[reflect.TypeOf(&events.KeepAliveTimeout{})] = "KeepAliveTimeout"
	etm.typeMap[reflect.TypeOf(&events.StreamError{})] = "StreamError"
	etm.typeMap[reflect.TypeOf(&events.StreamReplaced{})] = "StreamReplaced"
	etm.typeMap[reflect.TypeOf(&events.TemporaryBan{})] = "TemporaryBan"

	// Pareamento
	etm.typeMap[reflect.TypeOf(&events.QR{})] = "QR"
	etm.typeMap[reflect.TypeOf(&events.PairSuccess{})] = "PairSuccess"
	etm.typeMap[reflect.TypeOf(&events.PairError{})] = "PairError"
	etm.typeMap[reflect.TypeOf(&events.QRScannedWithoutMultidevice{})] = "QRScannedWithoutMultidevice"

	// Configuração da conta
	etm.typeMap[reflect.TypeOf(&events.PushNameSetting{})] = "PushNameSetting"
	etm.typeMap[reflect.TypeOf(&events.BusinessName{})] = "BusinessName"

	// Mensagens
	etm.typeMap[reflect.TypeOf(&events.Message{})] = "Message"
	etm.typeMap[reflect.TypeOf(&events.Receipt{})] = "Receipt"
	etm.typeMap[reflect.TypeOf(&events.HistorySync{})] = "HistorySync"
	etm.typeMap[reflect.TypeOf(&events.OfflineSyncCompleted{})] = "OfflineSyncCompleted"
}

// GetEventType retorna o tipo do evento como string
func (etm *EventTypeMapper) GetEventType(evt interface{}) string {
	if eventName, exists := etm.typeMap[reflect.TypeOf(evt)]; exists {
		return eventName
	}
	return "Unknown"
}

// IsKnownEvent verifica se o evento é conhecido
func (etm *EventTypeMapper) IsKnownEvent(evt interface{}) bool {
	_, exists := etm.typeMap[reflect.TypeOf(evt)]
	return exists
}

// GlobalEventMapper é a instância compartilhada
var GlobalEventMapper = NewEventTypeMapper()

// GetEventType função global para compatibilidade
func GetEventType(evt interface{}) string {
	return GlobalEventMapper.GetEventType(evt)
}

// Classify converte um evento bruto do whatsmeow em evento de ciclo de vida.
// Eventos sem efeito no ciclo de vida retornam ok=false. Para
// EventCredentialsUpdated o chamador preenche Credentials a partir do device.
func Classify(evt interface{}) (whatsapp.Event, bool) {
	switch v := evt.(type) {
	case *events.Connected:
		return whatsapp.Connected(), true

	case *events.Disconnected, *events.KeepAliveTimeout, *events.TemporaryBan,
		*events.ClientOutdated, *events.StreamError, *events.PairError:
		return whatsapp.Disconnected(whatsapp.ReasonRetryable), true

	case *events.ConnectFailure:
		if v.Reason.IsLoggedOut() {
			return whatsapp.Disconnected(whatsapp.ReasonBanned), true
		}
		return whatsapp.Disconnected(whatsapp.ReasonRetryable), true

	case *events.LoggedOut:
		return whatsapp.Disconnected(whatsapp.ReasonBanned), true

	case *events.StreamReplaced:
		return whatsapp.Disconnected(whatsapp.ReasonReplaced), true

	case *events.PairSuccess, *events.PushNameSetting, *events.BusinessName:
		return whatsapp.Event{Kind: whatsapp.EventCredentialsUpdated}, true

	default:
		return whatsapp.Event{}, false
	}
}
