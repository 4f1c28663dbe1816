package permissions

import "order-access-service/internal/models"

type capabilitySet struct {
	view, edit, delete, share, download, print, comment, approve bool
}

func fullCapabilities() capabilitySet {
	return capabilitySet{
		view: true, edit: true, delete: true, share: true,
		download: true, print: true, comment: true, approve: true,
	}
}

func capabilitiesFromDirect(g *models.DirectPermission) capabilitySet {
	return capabilitySet{
		view:     g.CanView,
		edit:     g.CanEdit,
		delete:   g.CanDelete,
		share:    g.CanShare,
		download: g.CanDownload,
		print:    g.CanPrint,
		comment:  g.CanComment,
		approve:  g.CanApprove,
	}
}

// capabilitiesForLevel expands a department access level into the capabilities
// it confers. Each level includes everything below it.
func capabilitiesForLevel(level models.AccessLevel) capabilitySet {
	var c capabilitySet
	if level >= models.AccessLevelViewOnly {
		c.view, c.download, c.print = true, true, true
	}
	if level >= models.AccessLevelEdit {
		c.edit, c.comment = true, true
	}
	if level >= models.AccessLevelFull {
		c.delete, c.share, c.approve = true, true, true
	}
	return c
}

func withCapabilities(p models.EffectivePermission, c capabilitySet, source models.PermissionSource) models.EffectivePermission {
	p.CanView = c.view
	p.CanEdit = c.edit
	p.CanDelete = c.delete
	p.CanShare = c.share
	p.CanDownload = c.download
	p.CanPrint = c.print
	p.CanComment = c.comment
	p.CanApprove = c.approve
	p.Source = source
	return p
}
