package sandbox

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/jhenriksen/sandbox/internal/docker"
	"github.com/jhenriksen/sandbox/internal/mount"
)

// GCReport summarizes a gc pass.
type GCReport struct {
	Scanned int
	Removed []string
	Kept    int
}

// GC removes overlay volumes whose sandbox directory is gone, e.g. after a
// sandbox dir was deleted out of band. Volumes whose names this tool did not
// produce are never touched.
func (c *Controller) GC() (GCReport, error) {
	vols, err := docker.ListVolumes("sandbox-")
	if err != nil {
		return GCReport{}, err
	}

	var report GCReport
	for _, vol := range vols {
		name, _, ok := mount.ParseVolumeName(vol)
		if !ok {
			continue
		}
		report.Scanned++

		if _, err := os.Stat(filepath.Join(c.Root, name)); err == nil {
			report.Kept++
			continue
		}

		if err := docker.RemoveVolume(vol); err != nil {
			logrus.WithError(err).Warnf("could not remove orphaned volume %s", vol)
			report.Kept++
			continue
		}
		report.Removed = append(report.Removed, vol)
	}
	return report, nil
}
