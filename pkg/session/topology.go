package session

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/srg/photonctl/internal/device"
	"github.com/srg/photonctl/internal/schema"
)

func (s *Session) onServicesDiscovered(ev device.ServicesDiscovered) {
	if !s.isCurrent(ev.Peripheral) {
		s.logger.Debug("Ignoring services of a stale connection")
		return
	}
	if ev.Err != nil {
		s.logger.WithField("error", ev.Err).Warn("Service discovery failed")
		return
	}

	for _, svc := range ev.Services {
		def, ok := schema.LookupService(svc.UUID())
		if !ok {
			s.logger.WithField("service_uuid", svc.UUID()).Info("Found unknown service")
			continue
		}

		s.logger.WithFields(logrus.Fields{
			"service":      def.Name,
			"service_uuid": svc.UUID(),
		}).Info("Discovered service")
		if err := s.radio.DiscoverCharacteristics(s.conn, svc, def.CharacteristicUUIDs()); err != nil {
			s.logger.WithFields(logrus.Fields{
				"service": def.Name,
				"error":   err,
			}).Warn("Failed to start characteristic discovery")
		}
	}
}

func (s *Session) onCharacteristicsDiscovered(ev device.CharacteristicsDiscovered) {
	if !s.isCurrent(ev.Peripheral) {
		s.logger.Debug("Ignoring characteristics of a stale connection")
		return
	}
	if ev.Err != nil {
		fields := logrus.Fields{"error": ev.Err}
		if ev.Service != nil {
			fields["service_uuid"] = ev.Service.UUID()
		}
		s.logger.WithFields(fields).Warn("Characteristic discovery failed")
		return
	}

	for _, c := range ev.Characteristics {
		role := schema.LookupRole(c.UUID())
		if role == schema.RoleUnknown {
			s.logger.WithField("char_uuid", c.UUID()).Info("Found unknown characteristic")
			continue
		}

		s.logger.WithFields(logrus.Fields{
			"role":       role,
			"char_uuid":  c.UUID(),
			"properties": c.Properties(),
		}).Info("Found characteristic")
		s.assignHandle(role, c)

		if role.Notifies() {
			if err := s.radio.Subscribe(s.conn, c); err != nil {
				s.logger.WithFields(logrus.Fields{
					"role":  role,
					"error": err,
				}).Warn("Failed to subscribe to characteristic notifications")
			}
		}
	}
}

func (s *Session) onSubscribed(ev device.Subscribed) {
	role := schema.RoleUnknown
	if ev.Characteristic != nil {
		role = schema.LookupRole(ev.Characteristic.UUID())
	}
	if ev.Err != nil {
		s.logger.WithFields(logrus.Fields{
			"role":  role,
			"error": ev.Err,
		}).Warn("Subscription failed")
		return
	}
	s.logger.WithField("role", role).Debug("Subscribed to characteristic notifications")
}

func (s *Session) assignHandle(role schema.Role, c device.Characteristic) {
	s.handles[role] = c
	s.recomputeCapabilities()
}

func (s *Session) clearHandles() {
	s.handles = make(map[schema.Role]device.Characteristic)
	s.recomputeCapabilities()
}

// handleFor returns the resolved characteristic for role, if any.
func (s *Session) handleFor(role schema.Role) (device.Characteristic, bool) {
	c, ok := s.handles[role]
	return c, ok && c != nil
}

// roleOf maps an event's characteristic back to the role it was resolved under.
// Characteristics that were never resolved map to RoleUnknown.
func (s *Session) roleOf(c device.Characteristic) schema.Role {
	if c == nil {
		return schema.RoleUnknown
	}
	for role, h := range s.handles {
		if h != nil && schema.SameUUID(h.UUID(), c.UUID()) {
			return role
		}
	}
	return schema.RoleUnknown
}

func (s *Session) recomputeCapabilities() {
	_, scan := s.handleFor(schema.WifiScanCommand)
	_, creds := s.handleFor(schema.WifiCredentials)
	s.state.CanConfigureWifi = scan
	s.state.CanSendCredentials = creds

	roles := make([]schema.Role, 0, len(s.handles))
	for role := range s.handles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	s.state.Resolved = roles
}
