package uaclient

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gopcua/opcua/id"
	"github.com/gopcua/opcua/ua"

	"github.com/arloliu/opcsub/types"
)

// statusOf converts an OPC UA status code.
func statusOf(code ua.StatusCode) types.StatusCode {
	return types.StatusCode(uint32(code))
}

// serviceError attaches the OPC UA status carried by err, if any.
func serviceError(op string, err error) error {
	if err == nil {
		return nil
	}

	var code ua.StatusCode
	if errors.As(err, &code) {
		return types.NewServiceError(statusOf(code), fmt.Errorf("%s: %w", op, err))
	}

	return fmt.Errorf("%s: %w", op, err)
}

// toDataValue converts a server data value; a missing value is reported as bad.
func toDataValue(dv *ua.DataValue) types.DataValue {
	if dv == nil {
		return types.DataValue{Status: types.StatusBadUnexpectedError}
	}

	return types.DataValue{
		Value:           variantValue(dv.Value),
		Status:          statusOf(dv.Status),
		SourceTimestamp: dv.SourceTimestamp,
		ServerTimestamp: dv.ServerTimestamp,
	}
}

func variantValue(v *ua.Variant) any {
	if v == nil {
		return nil
	}

	return v.Value()
}

// readValueIDs builds the nodes of a batched read.
func readValueIDs(items []types.ReadItem) ([]*ua.ReadValueID, error) {
	out := make([]*ua.ReadValueID, len(items))
	for i, it := range items {
		nodeID, err := ua.ParseNodeID(it.NodeID)
		if err != nil {
			return nil, types.NewServiceError(types.StatusBadNodeIDUnknown, fmt.Errorf("parse node id %q: %w", it.NodeID, err))
		}
		attr := it.AttributeID
		if attr == 0 {
			attr = types.AttributeValue
		}
		out[i] = &ua.ReadValueID{
			NodeID:       nodeID,
			AttributeID:  ua.AttributeID(attr),
			DataEncoding: &ua.QualifiedName{},
		}
	}

	return out, nil
}

// monitorRequest builds the create request of one monitored item.
func monitorRequest(handle uint32, opts types.MonitoredItemOptions) (*ua.MonitoredItemCreateRequest, error) {
	nodeID, err := ua.ParseNodeID(opts.NodeID)
	if err != nil {
		return nil, fmt.Errorf("parse node id %q: %w", opts.NodeID, err)
	}

	params := &ua.MonitoringParameters{
		ClientHandle:     handle,
		SamplingInterval: float64(opts.SamplingInterval.Milliseconds()),
		QueueSize:        opts.QueueSize,
		DiscardOldest:    opts.DiscardOldest,
	}
	switch {
	case opts.IsEvent():
		params.Filter = eventFilter(opts.EventFields)
	case opts.DataChangeFilter != nil:
		params.Filter = dataChangeFilter(*opts.DataChangeFilter)
	}

	return &ua.MonitoredItemCreateRequest{
		ItemToMonitor: &ua.ReadValueID{
			NodeID:       nodeID,
			AttributeID:  ua.AttributeID(opts.Attribute()),
			DataEncoding: &ua.QualifiedName{},
		},
		MonitoringMode:      ua.MonitoringModeReporting,
		RequestedParameters: params,
	}, nil
}

// eventFilter selects fields of BaseEventType. A field may be a slash-separated
// browse path such as "EnabledState/Id".
func eventFilter(fields []string) *ua.ExtensionObject {
	clauses := make([]*ua.SimpleAttributeOperand, len(fields))
	for i, field := range fields {
		parts := strings.Split(field, "/")
		path := make([]*ua.QualifiedName, len(parts))
		for j, p := range parts {
			path[j] = &ua.QualifiedName{NamespaceIndex: 0, Name: p}
		}
		clauses[i] = &ua.SimpleAttributeOperand{
			TypeDefinitionID: ua.NewNumericNodeID(0, id.BaseEventType),
			BrowsePath:       path,
			AttributeID:      ua.AttributeIDValue,
		}
	}

	return ua.NewExtensionObject(&ua.EventFilter{
		SelectClauses: clauses,
		WhereClause:   &ua.ContentFilter{},
	})
}

func dataChangeFilter(f types.DataChangeFilter) *ua.ExtensionObject {
	return ua.NewExtensionObject(&ua.DataChangeFilter{
		Trigger:       ua.DataChangeTrigger(f.Trigger),
		DeadbandType:  uint32(f.DeadbandType),
		DeadbandValue: f.DeadbandValue,
	})
}

// dataChanges converts a data change notification.
func dataChanges(n *ua.DataChangeNotification) []types.MonitoredValue {
	out := make([]types.MonitoredValue, 0, len(n.MonitoredItems))
	for _, it := range n.MonitoredItems {
		if it == nil {
			continue
		}
		out = append(out, types.MonitoredValue{Handle: it.ClientHandle, Value: toDataValue(it.Value)})
	}

	return out
}

// events converts an event notification list.
func events(n *ua.EventNotificationList) []types.MonitoredEvent {
	out := make([]types.MonitoredEvent, 0, len(n.Events))
	for _, ev := range n.Events {
		if ev == nil {
			continue
		}
		fields := make([]any, len(ev.EventFields))
		for i, f := range ev.EventFields {
			fields[i] = variantValue(f)
		}
		out = append(out, types.MonitoredEvent{Handle: ev.ClientHandle, Fields: fields})
	}

	return out
}

// limitValue extracts an unsigned limit from a read result.
func limitValue(dv *ua.DataValue) (uint32, bool) {
	if dv == nil || dv.Status != ua.StatusOK {
		return 0, false
	}

	switch v := variantValue(dv.Value).(type) {
	case uint32:
		return v, true
	case uint16:
		return uint32(v), true
	case int32:
		if v >= 0 {
			return uint32(v), true
		}
	case uint64:
		if v <= uint64(^uint32(0)) {
			return uint32(v), true
		}
	case int64:
		if v >= 0 && v <= int64(^uint32(0)) {
			return uint32(v), true
		}
	}

	return 0, false
}
